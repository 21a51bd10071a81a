package store

import "strings"

// Join builds a tree path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, ErrInvalidPath
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return nil, ErrInvalidPath
		}
	}
	return segs, nil
}

func parentOf(segs []string) string {
	return strings.Join(segs[:len(segs)-1], "/")
}

// descend walks node along segs. Only JSON objects can be descended into.
func descend(node any, segs []string) (any, bool) {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// place sets value at segs below root, creating intermediate objects. A nil
// value removes the leaf.
func place(root map[string]any, segs []string, value any) {
	node := root
	for _, s := range segs[:len(segs)-1] {
		next, ok := node[s].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[s] = next
		}
		node = next
	}
	last := segs[len(segs)-1]
	if value == nil {
		delete(node, last)
		return
	}
	node[last] = value
}
