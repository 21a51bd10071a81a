package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"match-chat-backend/internal/store"
)

const credentialsRoot = "credentials"

// Credential links an email to a password hash and a user id
type Credential struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

// CredentialRepository handles email/password credentials
type CredentialRepository struct {
	tree store.Tree
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(tree store.Tree) *CredentialRepository {
	return &CredentialRepository{tree: tree}
}

// emailKey makes an email usable as a single path segment
func emailKey(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.ToLower(strings.TrimSpace(email))))
}

// Create stores a credential
func (r *CredentialRepository) Create(ctx context.Context, cred Credential) error {
	if err := r.tree.Set(ctx, store.Join(credentialsRoot, emailKey(cred.Email)), cred); err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// GetByEmail retrieves a credential. The boolean is false when none exists.
func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*Credential, bool, error) {
	var cred Credential
	found, err := r.tree.Get(ctx, store.Join(credentialsRoot, emailKey(email)), &cred)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get credential: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	return &cred, true, nil
}
