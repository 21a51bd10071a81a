package repository

import (
	"context"
	"fmt"

	"match-chat-backend/internal/models"
	"match-chat-backend/internal/store"
)

const (
	likesRoot   = "likes"
	passesRoot  = "passes"
	matchesRoot = "matches"
)

// MatchRepository handles like, pass and match records
type MatchRepository struct {
	tree store.Tree
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(tree store.Tree) *MatchRepository {
	return &MatchRepository{tree: tree}
}

type timestampRecord struct {
	Timestamp int64 `json:"timestamp"`
}

// CreateLike persists likes/{actor}/{target}
func (r *MatchRepository) CreateLike(ctx context.Context, like models.LikeRecord) error {
	path := store.Join(likesRoot, like.ActorID, like.TargetID)
	if err := r.tree.Set(ctx, path, timestampRecord{Timestamp: like.Timestamp}); err != nil {
		return fmt.Errorf("failed to create like: %w", err)
	}
	return nil
}

// LikeExists checks whether actor liked target
func (r *MatchRepository) LikeExists(ctx context.Context, actorID, targetID string) (bool, error) {
	exists, err := r.tree.Exists(ctx, store.Join(likesRoot, actorID, targetID))
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return exists, nil
}

// CreatePass persists passes/{actor}/{target}
func (r *MatchRepository) CreatePass(ctx context.Context, pass models.PassRecord) error {
	path := store.Join(passesRoot, pass.ActorID, pass.TargetID)
	if err := r.tree.Set(ctx, path, timestampRecord{Timestamp: pass.Timestamp}); err != nil {
		return fmt.Errorf("failed to create pass: %w", err)
	}
	return nil
}

// SetMatches writes all records in one atomic write
func (r *MatchRepository) SetMatches(ctx context.Context, records ...models.MatchRecord) error {
	values := make(map[string]any, len(records))
	for _, rec := range records {
		values[store.Join(matchesRoot, rec.OwnerID, rec.OtherID)] = rec
	}
	if err := r.tree.SetMany(ctx, values); err != nil {
		return fmt.Errorf("failed to write matches: %w", err)
	}
	return nil
}

// GetMatch retrieves matches/{owner}/{other}
func (r *MatchRepository) GetMatch(ctx context.Context, ownerID, otherID string) (*models.MatchRecord, bool, error) {
	var rec models.MatchRecord
	found, err := r.tree.Get(ctx, store.Join(matchesRoot, ownerID, otherID), &rec)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get match: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	rec.OwnerID, rec.OtherID = ownerID, otherID
	return &rec, true, nil
}

// ListMatches returns every match record owned by ownerID
func (r *MatchRepository) ListMatches(ctx context.Context, ownerID string) ([]models.MatchRecord, error) {
	children, err := r.tree.Children(ctx, store.Join(matchesRoot, ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	records := make([]models.MatchRecord, 0, len(children))
	for _, c := range children {
		var rec models.MatchRecord
		if err := c.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode match %s: %w", c.Key, err)
		}
		rec.OwnerID, rec.OtherID = ownerID, c.Key
		records = append(records, rec)
	}
	return records, nil
}

// LikedIDs returns the ids actor liked
func (r *MatchRepository) LikedIDs(ctx context.Context, actorID string) ([]string, error) {
	return r.childKeys(ctx, store.Join(likesRoot, actorID))
}

// PassedIDs returns the ids actor passed on
func (r *MatchRepository) PassedIDs(ctx context.Context, actorID string) ([]string, error) {
	return r.childKeys(ctx, store.Join(passesRoot, actorID))
}

// MatchedIDs returns the ids actor has a match record with, in any state
func (r *MatchRepository) MatchedIDs(ctx context.Context, actorID string) ([]string, error) {
	return r.childKeys(ctx, store.Join(matchesRoot, actorID))
}

func (r *MatchRepository) childKeys(ctx context.Context, path string) ([]string, error) {
	children, err := r.tree.Children(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	keys := make([]string, 0, len(children))
	for _, c := range children {
		keys = append(keys, c.Key)
	}
	return keys, nil
}
