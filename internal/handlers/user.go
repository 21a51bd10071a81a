package handlers

import (
	"net/http"

	"match-chat-backend/internal/middleware"
	"match-chat-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles authentication and profile requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// LoginRequest represents an email/password sign-in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GoogleSignInRequest carries a Google ID token
type GoogleSignInRequest struct {
	IDToken string `json:"id_token"`
}

// PushTokenRequest carries a device token
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// Register handles POST /api/v1/auth/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.userService.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "Failed to register")
		return
	}

	log.Info().Str("user_id", resp.User.ID).Msg("User registered")
	respondJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.userService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err, "Failed to sign in")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GoogleSignIn handles POST /api/v1/auth/google
func (h *UserHandler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req GoogleSignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.userService.SignInFederated(r.Context(), req.IDToken)
	if err != nil {
		respondServiceError(w, err, "Failed to sign in with Google")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/v1/auth/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.userService.SignOut(ctx, middleware.GetUserID(ctx)); err != nil {
		respondServiceError(w, err, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMe handles GET /api/v1/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.userService.Profile(ctx, middleware.GetUserID(ctx))
	if err != nil {
		respondServiceError(w, err, "Failed to load profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateMe handles PATCH /api/v1/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req services.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(ctx, middleware.GetUserID(ctx), req)
	if err != nil {
		respondServiceError(w, err, "Failed to update profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// SetPushToken handles PUT /api/v1/me/push-token
func (h *UserHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.userService.SetPushToken(ctx, middleware.GetUserID(ctx), req.PushToken); err != nil {
		respondServiceError(w, err, "Failed to save push token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
