package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"match-chat-backend/internal/apperr"
	"match-chat-backend/internal/identity"
	"match-chat-backend/internal/models"
	"match-chat-backend/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const defaultTokenTTL = 365 * 24 * time.Hour

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns validator output into an apperr.ValidationError for
// the first failing field
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return apperr.Invalid(fe.Field(), "is required")
	case "email":
		return apperr.Invalid(fe.Field(), "must be a valid email")
	case "numeric":
		return apperr.Invalid(fe.Field(), "must be a number")
	case "min":
		return apperr.Invalid(fe.Field(), "must be at least "+fe.Param()+" characters")
	}
	return apperr.Invalid(fe.Field(), "failed "+fe.Tag()+" check")
}

// RegisterRequest represents a sign-up
type RegisterRequest struct {
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6"`
	Name     string      `json:"name" validate:"required"`
	Age      json.Number `json:"age" validate:"required,numeric"`
}

// UpdateProfileRequest carries the editable profile fields. Nil fields are
// left untouched.
type UpdateProfileRequest struct {
	Name *string      `json:"name,omitempty"`
	Age  *json.Number `json:"age,omitempty"`
	Bio  *string      `json:"bio,omitempty"`
}

// AuthResponse is returned by every sign-in path
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// SessionClaims are the claims of our session tokens
type SessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UserService handles accounts, sessions and profiles
type UserService struct {
	userRepo  *repository.UserRepository
	provider  identity.Provider
	jwtSecret string
	tokenTTL  time.Duration
}

// NewUserService creates a new user service
func NewUserService(userRepo *repository.UserRepository, provider identity.Provider, jwtSecret string, tokenTTL time.Duration) *UserService {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &UserService{
		userRepo:  userRepo,
		provider:  provider,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// GenerateJWT generates a session token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates a session token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse token: %v", apperr.ErrUnauthorized, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	}
	return claims.UserID, nil
}

// parseAge floors a numeric age and clamps it at zero
func parseAge(raw json.Number) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperr.Invalid("age", "must be a number")
	}
	age := int(math.Floor(f))
	if age < 0 {
		age = 0
	}
	return age, nil
}

// Register validates the sign-up, creates the account and writes the profile
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	age, err := parseAge(req.Age)
	if err != nil {
		return nil, err
	}

	ident, err := s.provider.Register(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:    ident.UserID,
		Name:  req.Name,
		Age:   age,
		Email: ident.Email,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", user.ID).Msg("Profile created")

	return s.authResponse(user)
}

// SignIn authenticates with email and password
func (s *UserService) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.Invalid("email", "email and password are required")
	}
	ident, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	user, err := s.ensureProfile(ctx, ident, false)
	if err != nil {
		return nil, err
	}
	return s.authResponse(user)
}

// SignInFederated authenticates with a Google ID token. Name, email and
// photo are refreshed from the token on every sign-in.
func (s *UserService) SignInFederated(ctx context.Context, idToken string) (*AuthResponse, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, apperr.Invalid("id_token", "is required")
	}
	ident, err := s.provider.SignInFederated(ctx, idToken)
	if err != nil {
		return nil, err
	}
	user, err := s.ensureProfile(ctx, ident, true)
	if err != nil {
		return nil, err
	}
	return s.authResponse(user)
}

// SignOut ends the session on the provider side
func (s *UserService) SignOut(ctx context.Context, userID string) error {
	return s.provider.SignOut(ctx, userID)
}

func (s *UserService) authResponse(user *models.User) (*AuthResponse, error) {
	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// ensureProfile returns the profile of ident, creating it when absent
func (s *UserService) ensureProfile(ctx context.Context, ident *identity.Identity, refresh bool) (*models.User, error) {
	user, found, err := s.userRepo.GetByID(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		user = &models.User{
			ID:       ident.UserID,
			Name:     ident.DisplayName,
			Email:    ident.Email,
			PhotoURL: ident.PhotoURL,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
		log.Info().Str("user_id", user.ID).Msg("Profile created on sign-in")
		return user, nil
	}
	if !refresh {
		return user, nil
	}

	fields := map[string]any{}
	if ident.DisplayName != "" && ident.DisplayName != user.Name {
		fields["name"] = ident.DisplayName
	}
	if ident.Email != "" && ident.Email != user.Email {
		fields["email"] = ident.Email
	}
	if ident.PhotoURL != "" && ident.PhotoURL != user.PhotoURL {
		fields["photo_url"] = ident.PhotoURL
	}
	if len(fields) == 0 {
		return user, nil
	}
	if err := s.userRepo.Update(ctx, user.ID, fields); err != nil {
		return nil, err
	}
	return s.Profile(ctx, user.ID)
}

// Profile returns the user's profile, creating an empty one when absent
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, found, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if found {
		return user, nil
	}
	return s.ensureProfile(ctx, &identity.Identity{UserID: userID}, false)
}

// UpdateProfile applies the given fields and returns the stored profile
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "is required")
		}
		fields["name"] = name
	}
	if req.Age != nil {
		age, err := parseAge(*req.Age)
		if err != nil {
			return nil, err
		}
		fields["age"] = age
	}
	if req.Bio != nil {
		fields["bio"] = strings.TrimSpace(*req.Bio)
	}
	if len(fields) == 0 {
		return s.Profile(ctx, userID)
	}

	if err := s.userRepo.Update(ctx, userID, fields); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Int("fields", len(fields)).Msg("Profile updated")
	return s.Profile(ctx, userID)
}

// SetPushToken registers the device token push notifications go to
func (s *UserService) SetPushToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Invalid("push_token", "is required")
	}
	return s.userRepo.UpdatePushToken(ctx, userID, token)
}

// DisplayName returns the user's name, or fallback when it cannot be read
func (s *UserService) DisplayName(ctx context.Context, userID, fallback string) string {
	user, found, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || !found || user.Name == "" {
		return fallback
	}
	return user.Name
}
