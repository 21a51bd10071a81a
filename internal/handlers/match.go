package handlers

import (
	"net/http"

	"match-chat-backend/internal/middleware"
	"match-chat-backend/internal/models"
	"match-chat-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo/mutable"
)

// MatchHandler handles discovery, likes, passes and the match list
type MatchHandler struct {
	matchService *services.MatchService
	userService  *services.UserService
	wsHub        *services.WSHub
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchService *services.MatchService, userService *services.UserService, wsHub *services.WSHub) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
		userService:  userService,
		wsHub:        wsHub,
	}
}

// Candidates handles GET /api/v1/candidates?shuffle=true
func (h *MatchHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	candidates, err := h.matchService.ListCandidates(ctx, userID)
	if err != nil {
		respondServiceError(w, err, "Failed to list candidates")
		return
	}
	if r.URL.Query().Get("shuffle") == "true" {
		mutable.Shuffle(candidates)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": candidates,
		"total":      len(candidates),
	})
}

// Like handles POST /api/v1/likes/{target_id}
func (h *MatchHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	targetID := chi.URLParam(r, "target_id")

	outcome, err := h.matchService.RecordLike(ctx, userID, targetID)
	if err != nil {
		respondServiceError(w, err, "Failed to record like")
		return
	}

	if outcome.Mutual {
		// Both users learn about the match if they are online
		h.wsHub.NotifyMatchCreated(userID, &models.User{ID: targetID, Name: outcome.MatchedName}, outcome.MatchedAt)
		actorName := h.userService.DisplayName(ctx, userID, services.PlaceholderMatchName)
		h.wsHub.NotifyMatchCreated(targetID, &models.User{ID: userID, Name: actorName}, outcome.MatchedAt)

		log.Info().Str("user_id", userID).Str("target_id", targetID).Msg("Match notifications sent")
	}

	respondJSON(w, http.StatusOK, outcome)
}

// Pass handles POST /api/v1/passes/{target_id}
func (h *MatchHandler) Pass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := h.matchService.RecordPass(ctx, userID, chi.URLParam(r, "target_id")); err != nil {
		respondServiceError(w, err, "Failed to record pass")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Matches handles GET /api/v1/matches
func (h *MatchHandler) Matches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matches, err := h.matchService.ListActiveMatchProfiles(ctx, middleware.GetUserID(ctx))
	if err != nil {
		respondServiceError(w, err, "Failed to list matches")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"total":   len(matches),
	})
}
