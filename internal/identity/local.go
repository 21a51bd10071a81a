package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"match-chat-backend/internal/apperr"
	"match-chat-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// federatedNamespace derives stable user ids from federated subjects
var federatedNamespace = uuid.MustParse("5b0a6a62-3f4e-4a53-9d4c-6f1f0b7c2a10")

// LocalProvider keeps email/password credentials in the tree and delegates
// federated sign-in to a GoogleVerifier when one is configured.
type LocalProvider struct {
	creds  *repository.CredentialRepository
	google *GoogleVerifier
	now    func() time.Time
}

// NewLocalProvider creates a provider. google may be nil, in which case
// federated sign-in is unsupported.
func NewLocalProvider(creds *repository.CredentialRepository, google *GoogleVerifier) *LocalProvider {
	return &LocalProvider{creds: creds, google: google, now: time.Now}
}

// Register creates an account for email
func (p *LocalProvider) Register(ctx context.Context, email, password, displayName string) (*Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	_, exists, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: email %s is registered", apperr.ErrConflict, email)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	cred := repository.Credential{
		UserID:       uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    p.now().UnixMilli(),
	}
	if err := p.creds.Create(ctx, cred); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", cred.UserID).Msg("Account registered")
	return &Identity{UserID: cred.UserID, Email: email, DisplayName: displayName}, nil
}

// SignIn checks email and password
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	cred, found, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.ErrInvalidCredentials
	}

	ok, err := ComparePassword(password, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, apperr.ErrInvalidCredentials
	}
	return &Identity{UserID: cred.UserID, Email: cred.Email}, nil
}

// SignInFederated verifies a Google ID token. The user id is derived from
// the token subject, so the same Google account always maps to the same user.
func (p *LocalProvider) SignInFederated(ctx context.Context, idToken string) (*Identity, error) {
	if p.google == nil {
		return nil, fmt.Errorf("%w: federated sign-in is not configured", apperr.ErrUnsupported)
	}
	claims, err := p.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &Identity{
		UserID:      uuid.NewSHA1(federatedNamespace, []byte("google:"+claims.Subject)).String(),
		DisplayName: claims.Name,
		Email:       claims.Email,
		PhotoURL:    claims.Picture,
	}, nil
}

// SignOut has nothing to revoke: sessions are stateless tokens
func (p *LocalProvider) SignOut(ctx context.Context, userID string) error {
	log.Info().Str("user_id", userID).Msg("Signed out")
	return nil
}
