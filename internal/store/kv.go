package store

import "context"

// Entry is one row of a KV backend.
type Entry struct {
	Key   string
	Value []byte
}

// Op is a put, or a delete when Delete is set.
type Op struct {
	Key    string
	Value  []byte
	Delete bool
}

// KV is the flat storage a KVTree is built on. Scan returns rows sorted by key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Scan(ctx context.Context, prefix string) ([]Entry, error)
	Apply(ctx context.Context, ops []Op) error
	Close() error
}
