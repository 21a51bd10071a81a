package store

import (
	"context"
	"sort"
	"strings"
)

// rowReader is the read side of a KV.
type rowReader interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Scan(ctx context.Context, prefix string) ([]Entry, error)
}

// stagedRows overlays ops that are planned but not yet applied on top of a
// backend, so a multi-path write sees its own earlier paths.
type stagedRows struct {
	base  rowReader
	rows  map[string][]byte // nil marks a delete
	order []string
}

func newStagedRows(base rowReader) *stagedRows {
	return &stagedRows{base: base, rows: make(map[string][]byte)}
}

func (s *stagedRows) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := s.rows[key]; ok {
		return v, v != nil, nil
	}
	return s.base.Get(ctx, key)
}

func (s *stagedRows) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	entries, err := s.base.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	merged := make(map[string][]byte, len(entries))
	for _, e := range entries {
		merged[e.Key] = e.Value
	}
	for k, v := range s.rows {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{Key: k, Value: merged[k]})
	}
	return out, nil
}

func (s *stagedRows) stage(ops []Op) {
	for _, op := range ops {
		if _, seen := s.rows[op.Key]; !seen {
			s.order = append(s.order, op.Key)
		}
		if op.Delete {
			s.rows[op.Key] = nil
		} else {
			s.rows[op.Key] = op.Value
		}
	}
}

// ops returns one op per touched row, carrying its final state.
func (s *stagedRows) ops() []Op {
	ops := make([]Op, 0, len(s.order))
	for _, k := range s.order {
		if v := s.rows[k]; v != nil {
			ops = append(ops, Op{Key: k, Value: v})
		} else {
			ops = append(ops, Op{Key: k, Delete: true})
		}
	}
	return ops
}
