package loop

import (
	"context"
	"sync"
)

// Manual is a Scheduler that only runs callbacks when told to.
// It is safe to Post from any goroutine.
type Manual struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	notify  chan struct{}
}

// NewManual returns an idle Manual scheduler.
func NewManual() *Manual {
	return &Manual{notify: make(chan struct{}, 1)}
}

// Post implements Scheduler.
func (m *Manual) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of queued callbacks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunPending runs one turn: the callbacks queued at the time of the call.
// Callbacks they post are left for the next turn. It returns how many ran.
func (m *Manual) RunPending() int {
	m.mu.Lock()
	batch := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, fn := range batch {
		invoke(fn)
	}
	return len(batch)
}

// RunUntil runs turns until cond reports true, waiting for new posts in
// between. It returns ctx.Err() if ctx ends first.
func (m *Manual) RunUntil(ctx context.Context, cond func() bool) error {
	for {
		if cond() {
			return nil
		}
		if m.RunPending() > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.notify:
		}
	}
}

// Stop drops queued callbacks and rejects further posts.
func (m *Manual) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.queue = nil
	m.mu.Unlock()
}
