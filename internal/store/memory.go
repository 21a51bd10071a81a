package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryKV keeps rows in a map. It backs tests and single process setups.
type MemoryKV struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

// NewMemoryKV creates an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{rows: make(map[string][]byte)}
}

// NewMemoryTree is a shortcut for a tree over a fresh MemoryKV.
func NewMemoryTree() *KVTree {
	return NewKVTree(NewMemoryKV())
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.rows[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []Entry
	for k, v := range m.rows {
		if strings.HasPrefix(k, prefix) {
			entries = append(entries, Entry{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (m *MemoryKV) Apply(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Delete {
			delete(m.rows, op.Key)
			continue
		}
		m.rows[op.Key] = append([]byte(nil), op.Value...)
	}
	return nil
}

func (m *MemoryKV) Close() error { return nil }
