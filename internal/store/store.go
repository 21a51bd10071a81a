// Package store implements a hierarchical keyed-tree store with child-added
// notifications on top of a flat key/value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidPath is returned for empty paths or paths with empty segments.
var ErrInvalidPath = errors.New("invalid path")

// Child is one direct child of a tree node.
type Child struct {
	Key   string
	Value json.RawMessage
}

// Decode unmarshals the child value into dst.
func (c Child) Decode(dst any) error {
	return json.Unmarshal(c.Value, dst)
}

// Subscription is a live child-added listener. Close is idempotent; no
// delivery starts after it returns.
type Subscription interface {
	Close()
}

// CreateHook is invoked after a committed write created a new child.
// parent is the path of the node that gained the child.
type CreateHook func(parent string, child Child)

// Tree is a realtime keyed-tree store addressed by slash separated paths.
type Tree interface {
	// Get decodes the value at path into dst. It reports false when nothing
	// is stored at or below path.
	Get(ctx context.Context, path string, dst any) (bool, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Set replaces the subtree at path.
	Set(ctx context.Context, path string, value any) error
	// SetMany replaces several subtrees in one atomic write. Paths may share
	// ancestors or nest; each sees the paths sorted before it.
	SetMany(ctx context.Context, values map[string]any) error
	// Update merges fields into the record at path.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Push stores value under a new, time ordered key below path.
	Push(ctx context.Context, path string, value any) (string, error)
	// Children lists the direct children of path sorted by key.
	Children(ctx context.Context, path string) ([]Child, error)
	// Subscribe delivers every existing child of path, then each child added
	// later, in order, on a dedicated goroutine.
	Subscribe(path string, fn func(Child)) (Subscription, error)
	// OnCreate registers a hook for children created anywhere below prefix.
	OnCreate(prefix string, hook CreateHook)
}
