package messaging

import "sync"

// Watermark is the highest message timestamp a subscriber has processed. It
// never moves backwards.
type Watermark struct {
	mu   sync.Mutex
	mark int64
}

// NewWatermark starts a watermark at initial
func NewWatermark(initial int64) *Watermark {
	return &Watermark{mark: initial}
}

// Advance accepts ts when it is newer than the mark and moves the mark to it.
// Timestamps at or before the mark are rejected.
func (w *Watermark) Advance(ts int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ts <= w.mark {
		return false
	}
	w.mark = ts
	return true
}

// Value returns the current mark
func (w *Watermark) Value() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mark
}
