package repository

import (
	"context"
	"fmt"

	"match-chat-backend/internal/models"
	"match-chat-backend/internal/store"
)

const usersRoot = "users"

// UserRepository handles profile records under users/{id}
type UserRepository struct {
	tree store.Tree
}

// NewUserRepository creates a new user repository
func NewUserRepository(tree store.Tree) *UserRepository {
	return &UserRepository{tree: tree}
}

// Create writes a full profile
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.tree.Set(ctx, store.Join(usersRoot, user.ID), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a profile. The boolean is false when no profile exists.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, bool, error) {
	var user models.User
	found, err := r.tree.Get(ctx, store.Join(usersRoot, id), &user)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	if user.ID == "" {
		user.ID = id
	}
	return &user, true, nil
}

// List returns every profile in backend enumeration order
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	children, err := r.tree.Children(ctx, usersRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]*models.User, 0, len(children))
	for _, c := range children {
		var user models.User
		if err := c.Decode(&user); err != nil {
			return nil, fmt.Errorf("failed to decode user %s: %w", c.Key, err)
		}
		if user.ID == "" {
			user.ID = c.Key
		}
		users = append(users, &user)
	}
	return users, nil
}

// Update merges the given fields into a profile
func (r *UserRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := r.tree.Update(ctx, store.Join(usersRoot, id), fields); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	return r.Update(ctx, userID, map[string]any{"push_token": pushToken})
}

// GetPushToken returns the registered device token, empty when none
func (r *UserRepository) GetPushToken(ctx context.Context, userID string) (string, error) {
	var token string
	if _, err := r.tree.Get(ctx, store.Join(usersRoot, userID, "push_token"), &token); err != nil {
		return "", fmt.Errorf("failed to get push token: %w", err)
	}
	return token, nil
}
