package services

import (
	"context"
	"encoding/json"
	"testing"

	"match-chat-backend/internal/apperr"
	"match-chat-backend/internal/identity"
	"match-chat-backend/internal/repository"
	"match-chat-backend/internal/store"

	"github.com/stretchr/testify/require"
)

type userFixture struct {
	users    *repository.UserRepository
	provider *identity.LocalProvider
	service  *UserService
}

func newUserFixture() *userFixture {
	tree := store.NewMemoryTree()
	users := repository.NewUserRepository(tree)
	provider := identity.NewLocalProvider(repository.NewCredentialRepository(tree), nil)
	return &userFixture{
		users:    users,
		provider: provider,
		service:  NewUserService(users, provider, "test-secret", 0),
	}
}

// federatedProvider signs everyone in as the same Google account
type federatedProvider struct {
	identity.Provider
	ident identity.Identity
}

func (p *federatedProvider) SignInFederated(ctx context.Context, idToken string) (*identity.Identity, error) {
	ident := p.ident
	return &ident, nil
}

func TestRegister_CreatesProfileAndSession(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newUserFixture()

	resp, err := f.service.Register(ctx, RegisterRequest{
		Email:    "ana@example.com",
		Password: "secret1",
		Name:     "  Ana ",
		Age:      json.Number("29.7"),
	})
	req.NoError(err)
	req.Equal("Ana", resp.User.Name)
	req.Equal(29, resp.User.Age)

	userID, err := f.service.ValidateJWT(resp.Token)
	req.NoError(err)
	req.Equal(resp.User.ID, userID)

	stored, found, err := f.users.GetByID(ctx, userID)
	req.NoError(err)
	req.True(found)
	req.Equal("ana@example.com", stored.Email)
}

func TestRegister_ValidatesBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	cases := map[string]RegisterRequest{
		"empty name":     {Email: "a@example.com", Password: "secret1", Name: "   ", Age: "30"},
		"non numeric":    {Email: "a@example.com", Password: "secret1", Name: "Ana", Age: "thirty"},
		"missing age":    {Email: "a@example.com", Password: "secret1", Name: "Ana"},
		"bad email":      {Email: "not-an-email", Password: "secret1", Name: "Ana", Age: "30"},
		"short password": {Email: "a@example.com", Password: "123", Name: "Ana", Age: "30"},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			f := newUserFixture()

			_, err := f.service.Register(ctx, r)
			req.ErrorIs(err, apperr.ErrValidation)

			_, err = f.provider.SignIn(ctx, "a@example.com", "secret1")
			req.ErrorIs(err, apperr.ErrInvalidCredentials)
		})
	}
}

func TestRegister_NegativeAgeClampsToZero(t *testing.T) {
	f := newUserFixture()

	resp, err := f.service.Register(context.Background(), RegisterRequest{
		Email: "b@example.com", Password: "secret1", Name: "Ben", Age: "-4",
	})
	require.NoError(t, err)
	require.Equal(t, 0, resp.User.Age)
}

func TestSignIn_CreatesMissingProfile(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newUserFixture()

	// Given an account without a profile
	ident, err := f.provider.Register(ctx, "cleo@example.com", "secret1", "")
	req.NoError(err)

	// When
	resp, err := f.service.SignIn(ctx, "cleo@example.com", "secret1")

	// Then
	req.NoError(err)
	req.Equal(ident.UserID, resp.User.ID)
	_, found, err := f.users.GetByID(ctx, ident.UserID)
	req.NoError(err)
	req.True(found)

	_, err = f.service.SignIn(ctx, "cleo@example.com", "wrong-pass")
	req.ErrorIs(err, apperr.ErrInvalidCredentials)
}

func TestSignInFederated_RefreshesProfile(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tree := store.NewMemoryTree()
	users := repository.NewUserRepository(tree)
	provider := &federatedProvider{ident: identity.Identity{UserID: "g-1", DisplayName: "Dana", Email: "dana@gmail.com"}}
	service := NewUserService(users, provider, "test-secret", 0)

	first, err := service.SignInFederated(ctx, "token")
	req.NoError(err)
	req.Equal("Dana", first.User.Name)

	provider.ident.DisplayName = "Dana K"
	provider.ident.PhotoURL = "https://example.com/dana.jpg"
	second, err := service.SignInFederated(ctx, "token")
	req.NoError(err)
	req.Equal("Dana K", second.User.Name)
	req.Equal("https://example.com/dana.jpg", second.User.PhotoURL)
	req.Equal("dana@gmail.com", second.User.Email)
}

func TestUpdateProfile(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newUserFixture()

	resp, err := f.service.Register(ctx, RegisterRequest{Email: "e@example.com", Password: "secret1", Name: "Eve", Age: "40"})
	req.NoError(err)
	id := resp.User.ID

	blank := "  "
	_, err = f.service.UpdateProfile(ctx, id, UpdateProfileRequest{Name: &blank})
	req.ErrorIs(err, apperr.ErrValidation)

	name, bio, age := " Evelyn ", "  likes hiking ", json.Number("31.9")
	updated, err := f.service.UpdateProfile(ctx, id, UpdateProfileRequest{Name: &name, Bio: &bio, Age: &age})
	req.NoError(err)
	req.Equal("Evelyn", updated.Name)
	req.Equal("likes hiking", updated.Bio)
	req.Equal(31, updated.Age)
	req.Equal("e@example.com", updated.Email)
}

func TestProfile_CreatesOnAbsence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newUserFixture()

	user, err := f.service.Profile(ctx, "fresh")
	req.NoError(err)
	req.Equal("fresh", user.ID)

	_, found, err := f.users.GetByID(ctx, "fresh")
	req.NoError(err)
	req.True(found)
}

func TestSetPushToken(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newUserFixture()

	req.ErrorIs(f.service.SetPushToken(ctx, "u1", " "), apperr.ErrValidation)
	req.NoError(f.service.SetPushToken(ctx, "u1", "device-token"))

	token, err := f.users.GetPushToken(ctx, "u1")
	req.NoError(err)
	req.Equal("device-token", token)
}

func TestValidateJWT_RejectsForeignTokens(t *testing.T) {
	req := require.New(t)
	f := newUserFixture()
	other := NewUserService(f.users, f.provider, "other-secret", 0)

	token, err := other.GenerateJWT("u1")
	req.NoError(err)

	_, err = f.service.ValidateJWT(token)
	req.ErrorIs(err, apperr.ErrUnauthorized)

	_, err = f.service.ValidateJWT("garbage")
	req.ErrorIs(err, apperr.ErrUnauthorized)
}
