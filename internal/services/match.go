package services

import (
	"context"
	"fmt"
	"time"

	"match-chat-backend/internal/apperr"
	"match-chat-backend/internal/conversation"
	"match-chat-backend/internal/models"
	"match-chat-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// PlaceholderMatchName is shown when the matched user's profile cannot be read
const PlaceholderMatchName = "Your match"

// LikeOutcome is the result of a like
type LikeOutcome struct {
	Mutual      bool   `json:"mutual"`
	TargetID    string `json:"target_id"`
	MatchedName string `json:"matched_name,omitempty"`
	MatchedAt   int64  `json:"matched_at,omitempty"`
}

// MatchService reconciles likes and passes into match records
type MatchService struct {
	matchRepo *repository.MatchRepository
	userRepo  *repository.UserRepository
	now       func() time.Time
}

// NewMatchService creates a new match service
func NewMatchService(matchRepo *repository.MatchRepository, userRepo *repository.UserRepository) *MatchService {
	return &MatchService{
		matchRepo: matchRepo,
		userRepo:  userRepo,
		now:       time.Now,
	}
}

func validatePair(actorID, targetID string) error {
	if actorID == "" {
		return apperr.Invalid("actor_id", "actor is required")
	}
	if targetID == "" {
		return apperr.Invalid("target_id", "target is required")
	}
	if !conversation.ValidID(actorID) {
		return apperr.Invalid("actor_id", "actor id is malformed")
	}
	if !conversation.ValidID(targetID) {
		return apperr.Invalid("target_id", "target id is malformed")
	}
	if actorID == targetID {
		return apperr.Invalid("target_id", "cannot like or pass on yourself")
	}
	return nil
}

// RecordLike stores a like and creates the match records it implies. When
// the target already liked the actor both sides become mutual in one write;
// otherwise the actor gets a pending record.
func (s *MatchService) RecordLike(ctx context.Context, actorID, targetID string) (*LikeOutcome, error) {
	if err := validatePair(actorID, targetID); err != nil {
		return nil, err
	}

	ts := s.now().UnixMilli()
	if err := s.matchRepo.CreateLike(ctx, models.LikeRecord{ActorID: actorID, TargetID: targetID, Timestamp: ts}); err != nil {
		return nil, err
	}

	reciprocal, err := s.matchRepo.LikeExists(ctx, targetID, actorID)
	if err != nil {
		// The like itself is already stored; treat it as one-sided.
		log.Warn().
			Err(err).
			Str("actor_id", actorID).
			Str("target_id", targetID).
			Msg("Reciprocal like check failed, recording as pending")
		reciprocal = false
	}

	if !reciprocal {
		if err := s.matchRepo.SetMatches(ctx, models.MatchRecord{
			OwnerID:   actorID,
			OtherID:   targetID,
			State:     models.MatchPending,
			Timestamp: ts,
		}); err != nil {
			return nil, err
		}
		log.Info().Str("actor_id", actorID).Str("target_id", targetID).Msg("Like recorded")
		return &LikeOutcome{TargetID: targetID}, nil
	}

	if err := s.matchRepo.SetMatches(ctx,
		models.MatchRecord{OwnerID: actorID, OtherID: targetID, State: models.MatchMutual, Timestamp: ts},
		models.MatchRecord{OwnerID: targetID, OtherID: actorID, State: models.MatchMutual, Timestamp: ts},
	); err != nil {
		return nil, err
	}

	log.Info().Str("actor_id", actorID).Str("target_id", targetID).Msg("Mutual match created")
	return &LikeOutcome{
		Mutual:      true,
		TargetID:    targetID,
		MatchedName: s.displayName(ctx, targetID),
		MatchedAt:   ts,
	}, nil
}

func (s *MatchService) displayName(ctx context.Context, userID string) string {
	user, found, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to look up match name")
		return PlaceholderMatchName
	}
	if !found || user.Name == "" {
		return PlaceholderMatchName
	}
	return user.Name
}

// RecordPass stores a pass and a rejected match record for the actor
func (s *MatchService) RecordPass(ctx context.Context, actorID, targetID string) error {
	if err := validatePair(actorID, targetID); err != nil {
		return err
	}

	ts := s.now().UnixMilli()
	if err := s.matchRepo.CreatePass(ctx, models.PassRecord{ActorID: actorID, TargetID: targetID, Timestamp: ts}); err != nil {
		return err
	}
	if err := s.matchRepo.SetMatches(ctx, models.MatchRecord{
		OwnerID:   actorID,
		OtherID:   targetID,
		State:     models.MatchRejected,
		Timestamp: ts,
	}); err != nil {
		return err
	}

	log.Info().Str("actor_id", actorID).Str("target_id", targetID).Msg("Pass recorded")
	return nil
}

// ListCandidates returns every user the actor has not liked, passed or
// matched with, in backend enumeration order
func (s *MatchService) ListCandidates(ctx context.Context, actorID string) ([]*models.User, error) {
	if actorID == "" {
		return nil, apperr.Invalid("actor_id", "actor is required")
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	excluded := map[string]struct{}{actorID: {}}
	for _, source := range []struct {
		name string
		load func(context.Context, string) ([]string, error)
	}{
		{"likes", s.matchRepo.LikedIDs},
		{"passes", s.matchRepo.PassedIDs},
		{"matches", s.matchRepo.MatchedIDs},
	} {
		ids, err := source.load(ctx, actorID)
		if err != nil {
			log.Warn().Err(err).Str("actor_id", actorID).Str("set", source.name).Msg("Failed to read exclusion set, treating as empty")
			continue
		}
		for _, id := range ids {
			excluded[id] = struct{}{}
		}
	}

	return lo.Filter(users, func(u *models.User, _ int) bool {
		_, skip := excluded[u.ID]
		return !skip
	}), nil
}

// ListActiveMatches returns the ids of pending and mutual matches
func (s *MatchService) ListActiveMatches(ctx context.Context, actorID string) ([]string, error) {
	if actorID == "" {
		return nil, apperr.Invalid("actor_id", "actor is required")
	}
	records, err := s.matchRepo.ListMatches(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(records, func(r models.MatchRecord, _ int) (string, bool) {
		return r.OtherID, r.State.Active()
	}), nil
}

// ActiveMatch is an active match with the counterpart's profile
type ActiveMatch struct {
	User      *models.User      `json:"user"`
	State     models.MatchState `json:"state"`
	Timestamp int64             `json:"timestamp"`
}

// ListActiveMatchProfiles resolves active matches to profiles. A missing or
// unreadable profile yields a stand-in named after its id.
func (s *MatchService) ListActiveMatchProfiles(ctx context.Context, actorID string) ([]ActiveMatch, error) {
	if actorID == "" {
		return nil, apperr.Invalid("actor_id", "actor is required")
	}
	records, err := s.matchRepo.ListMatches(ctx, actorID)
	if err != nil {
		return nil, err
	}

	matches := make([]ActiveMatch, 0, len(records))
	for _, r := range records {
		if !r.State.Active() {
			continue
		}
		user, found, err := s.userRepo.GetByID(ctx, r.OtherID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", r.OtherID).Msg("Failed to load match profile")
		}
		if !found || user == nil {
			user = &models.User{ID: r.OtherID, Name: r.OtherID}
		}
		matches = append(matches, ActiveMatch{User: user, State: r.State, Timestamp: r.Timestamp})
	}
	return matches, nil
}
