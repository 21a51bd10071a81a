package identity

import "context"

// Identity is an authenticated account as seen by the profile layer
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
	PhotoURL    string
}

// Provider authenticates users. Absent accounts and wrong passwords both
// surface as apperr.ErrInvalidCredentials.
type Provider interface {
	Register(ctx context.Context, email, password, displayName string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignInFederated(ctx context.Context, idToken string) (*Identity, error)
	SignOut(ctx context.Context, userID string) error
}
