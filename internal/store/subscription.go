package store

import "sync"

// subscription buffers children for one listener and delivers them in order
// from its own goroutine, so writers never block on slow listeners.
type subscription struct {
	fn      func(Child)
	release func(*subscription)

	mu     sync.Mutex
	queue  []Child
	closed bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newSubscription(fn func(Child), release func(*subscription)) *subscription {
	return &subscription{
		fn:      fn,
		release: release,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (s *subscription) enqueue(children ...Child) {
	if len(children) == 0 {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, children...)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if s.closed || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.fn(next)
		}
	}
}

// Close stops delivery and unregisters the listener.
func (s *subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
		s.release(s)
	})
}
