package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type registeredHook struct {
	prefix string
	hook   CreateHook
}

type createdChild struct {
	parent string
	child  Child
}

// KVTree is a Tree over a flat KV backend. Each record is a JSON row stored at
// its own path; reads assemble subtrees from descendant rows or descend into
// an ancestor row. Writes are serialized by the tree.
type KVTree struct {
	kv KV

	mu      sync.RWMutex
	subs    map[string]map[*subscription]struct{}
	hooks   []registeredHook
	lastKey int64
	now     func() time.Time
}

// NewKVTree creates a tree on top of kv.
func NewKVTree(kv KV) *KVTree {
	return &KVTree{
		kv:   kv,
		subs: make(map[string]map[*subscription]struct{}),
		now:  time.Now,
	}
}

// Close closes the underlying backend.
func (t *KVTree) Close() error {
	return t.kv.Close()
}

// Get decodes the value at path into dst.
func (t *KVTree) Get(ctx context.Context, path string, dst any) (bool, error) {
	segs, err := splitPath(path)
	if err != nil {
		return false, err
	}
	t.mu.RLock()
	value, found, err := lookupRows(ctx, t.kv, segs)
	t.mu.RUnlock()
	if err != nil || !found {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return true, nil
}

// Exists reports whether anything is stored at or below path.
func (t *KVTree) Exists(ctx context.Context, path string) (bool, error) {
	segs, err := splitPath(path)
	if err != nil {
		return false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, found, err := lookupRows(ctx, t.kv, segs)
	return found, err
}

// Set replaces the subtree at path. A nil value removes it.
func (t *KVTree) Set(ctx context.Context, path string, value any) error {
	return t.SetMany(ctx, map[string]any{path: value})
}

// SetMany replaces each path of values in a single backend write. Paths are
// applied in sorted order, each against the result of the ones before it, so
// paths sharing a stored ancestor or nested in one another all take effect.
func (t *KVTree) SetMany(ctx context.Context, values map[string]any) error {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	t.mu.Lock()
	staged := newStagedRows(t.kv)
	var created []createdChild
	for _, p := range paths {
		segs, err := splitPath(p)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		value, err := toGeneric(values[p])
		if err != nil {
			t.mu.Unlock()
			return err
		}
		planned, c, err := planRows(ctx, staged, segs, value)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		staged.stage(planned)
		if c != nil {
			created = append(created, *c)
		}
	}
	if err := t.kv.Apply(ctx, staged.ops()); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to write %s: %w", strings.Join(paths, ", "), err)
	}
	hooks := t.notifyLocked(created)
	t.mu.Unlock()

	runHooks(hooks, created)
	return nil
}

// Update merges fields into the record at path. Nil fields are removed.
func (t *KVTree) Update(ctx context.Context, path string, fields map[string]any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}

	t.mu.Lock()
	current, _, err := lookupRows(ctx, t.kv, segs)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	merged := map[string]any{}
	if m, ok := current.(map[string]any); ok {
		for k, v := range m {
			merged[k] = v
		}
	}
	for k, v := range fields {
		g, err := toGeneric(v)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		if g == nil {
			delete(merged, k)
			continue
		}
		merged[k] = g
	}
	ops, c, err := planRows(ctx, t.kv, segs, merged)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if err := t.kv.Apply(ctx, ops); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	var created []createdChild
	if c != nil {
		created = append(created, *c)
	}
	hooks := t.notifyLocked(created)
	t.mu.Unlock()

	runHooks(hooks, created)
	return nil
}

// Push stores value under a new key below path and returns the key. Keys sort
// in creation order.
func (t *KVTree) Push(ctx context.Context, path string, value any) (string, error) {
	segs, err := splitPath(path)
	if err != nil {
		return "", err
	}
	generic, err := toGeneric(value)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	key := t.nextKey()
	ops, c, err := planRows(ctx, t.kv, append(segs, key), generic)
	if err != nil {
		t.mu.Unlock()
		return "", err
	}
	if err := t.kv.Apply(ctx, ops); err != nil {
		t.mu.Unlock()
		return "", fmt.Errorf("failed to push under %s: %w", path, err)
	}
	var created []createdChild
	if c != nil {
		created = append(created, *c)
	}
	hooks := t.notifyLocked(created)
	t.mu.Unlock()

	runHooks(hooks, created)
	return key, nil
}

// Children lists the direct children of path sorted by key.
func (t *KVTree) Children(ctx context.Context, path string) ([]Child, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.children(ctx, segs)
}

// Subscribe registers fn for children added below path. Existing children are
// delivered first.
func (t *KVTree) Subscribe(path string, fn func(Child)) (Subscription, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	path = strings.Join(segs, "/")

	t.mu.Lock()
	existing, err := t.children(context.Background(), segs)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	sub := newSubscription(fn, func(s *subscription) {
		t.mu.Lock()
		delete(t.subs[path], s)
		if len(t.subs[path]) == 0 {
			delete(t.subs, path)
		}
		t.mu.Unlock()
	})
	sub.enqueue(existing...)
	if t.subs[path] == nil {
		t.subs[path] = make(map[*subscription]struct{})
	}
	t.subs[path][sub] = struct{}{}
	t.mu.Unlock()

	go sub.run()
	return sub, nil
}

// OnCreate registers hook for children created at or below prefix.
func (t *KVTree) OnCreate(prefix string, hook CreateHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, registeredHook{prefix: strings.Trim(prefix, "/"), hook: hook})
}

func lookupRows(ctx context.Context, rows rowReader, segs []string) (any, bool, error) {
	path := strings.Join(segs, "/")

	raw, ok, err := rows.Get(ctx, path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if ok {
		value, err := decodeRow(raw)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return value, value != nil, nil
	}

	entries, err := rows.Scan(ctx, path+"/")
	if err != nil {
		return nil, false, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	if len(entries) > 0 {
		root := map[string]any{}
		for _, row := range entries {
			value, err := decodeRow(row.Value)
			if err != nil {
				return nil, false, fmt.Errorf("failed to decode %s: %w", row.Key, err)
			}
			place(root, strings.Split(strings.TrimPrefix(row.Key, path+"/"), "/"), value)
		}
		return root, true, nil
	}

	for i := len(segs) - 1; i >= 1; i-- {
		ancestor := strings.Join(segs[:i], "/")
		raw, ok, err := rows.Get(ctx, ancestor)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read %s: %w", ancestor, err)
		}
		if !ok {
			continue
		}
		value, err := decodeRow(raw)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decode %s: %w", ancestor, err)
		}
		node, found := descend(value, segs[i:])
		return node, found, nil
	}
	return nil, false, nil
}

// planRows computes the backend ops replacing the subtree at segs with value and
// the child creation it causes, if any.
func planRows(ctx context.Context, rows rowReader, segs []string, value any) ([]Op, *createdChild, error) {
	path := strings.Join(segs, "/")

	_, existed, err := lookupRows(ctx, rows, segs)
	if err != nil {
		return nil, nil, err
	}
	var created *createdChild
	if !existed && value != nil && len(segs) > 1 {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode %s: %w", path, err)
		}
		created = &createdChild{parent: parentOf(segs), child: Child{Key: segs[len(segs)-1], Value: raw}}
	}

	for i := len(segs) - 1; i >= 1; i-- {
		ancestor := strings.Join(segs[:i], "/")
		raw, ok, err := rows.Get(ctx, ancestor)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", ancestor, err)
		}
		if !ok {
			continue
		}
		current, err := decodeRow(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode %s: %w", ancestor, err)
		}
		record, ok := current.(map[string]any)
		if !ok {
			record = map[string]any{}
		}
		place(record, segs[i:], value)
		encoded, err := json.Marshal(record)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode %s: %w", ancestor, err)
		}
		return []Op{{Key: ancestor, Value: encoded}}, created, nil
	}

	descendants, err := rows.Scan(ctx, path+"/")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	ops := make([]Op, 0, len(descendants)+1)
	for _, row := range descendants {
		ops = append(ops, Op{Key: row.Key, Delete: true})
	}
	if value == nil {
		return append(ops, Op{Key: path, Delete: true}), nil, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return append(ops, Op{Key: path, Value: encoded}), created, nil
}

func (t *KVTree) children(ctx context.Context, segs []string) ([]Child, error) {
	value, found, err := lookupRows(ctx, t.kv, segs)
	if err != nil || !found {
		return nil, err
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	children := make([]Child, 0, len(keys))
	for _, k := range keys {
		raw, err := json.Marshal(m[k])
		if err != nil {
			return nil, fmt.Errorf("failed to encode child %s: %w", k, err)
		}
		children = append(children, Child{Key: k, Value: raw})
	}
	return children, nil
}

// notifyLocked queues created children on their parent's subscriptions and
// returns the hooks to run once the lock is released.
func (t *KVTree) notifyLocked(created []createdChild) []registeredHook {
	if len(created) == 0 {
		return nil
	}
	for _, c := range created {
		for sub := range t.subs[c.parent] {
			sub.enqueue(c.child)
		}
	}
	hooks := make([]registeredHook, len(t.hooks))
	copy(hooks, t.hooks)
	return hooks
}

func runHooks(hooks []registeredHook, created []createdChild) {
	for _, c := range created {
		for _, h := range hooks {
			if c.parent == h.prefix || strings.HasPrefix(c.parent, h.prefix+"/") {
				h.hook(c.parent, c.child)
			}
		}
	}
}

// nextKey returns a strictly increasing, fixed width key. Caller holds mu.
func (t *KVTree) nextKey() string {
	n := t.now().UnixNano()
	if n <= t.lastKey {
		n = t.lastKey + 1
	}
	t.lastKey = n
	return fmt.Sprintf("%019d", n)
}

func toGeneric(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return decodeRow(raw)
}

func decodeRow(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
