package pool

import (
	"context"
	"sync"
)

// Tracker is the ordered registry of a pool's live connections. Handles
// appear in the order their connects completed and leave when their
// transport closes. Only the owning Factory mutates a Tracker; any
// goroutine may read it.
type Tracker struct {
	mu      sync.RWMutex
	handles []*Handle
	changed chan struct{}
}

func newTracker() *Tracker {
	return &Tracker{changed: make(chan struct{})}
}

// add appends h.
func (t *Tracker) add(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handles = append(t.handles, h)
	t.notifyLocked()
}

// remove drops h, keeping the order of the rest. It reports whether h was
// registered.
func (t *Tracker) remove(h *Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, cur := range t.handles {
		if cur != h {
			continue
		}
		copy(t.handles[i:], t.handles[i+1:])
		t.handles[len(t.handles)-1] = nil
		t.handles = t.handles[:len(t.handles)-1]
		t.notifyLocked()
		return true
	}
	return false
}

// clear drops every handle and returns them.
func (t *Tracker) clear() []*Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.handles
	t.handles = nil
	if len(out) > 0 {
		t.notifyLocked()
	}
	return out
}

func (t *Tracker) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// Len returns the number of live handles.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handles)
}

// Snapshot returns a copy of the live handles in completion order.
func (t *Tracker) Snapshot() []*Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Handle(nil), t.handles...)
}

// At returns the i-th live handle.
func (t *Tracker) At(i int) (*Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i < 0 || i >= len(t.handles) {
		return nil, false
	}
	return t.handles[i], true
}

// Each calls fn for every live handle in order until fn returns false.
// It iterates a snapshot, so fn may block or read the tracker freely.
func (t *Tracker) Each(fn func(*Handle) bool) {
	for _, h := range t.Snapshot() {
		if !fn(h) {
			return
		}
	}
}

// Changed returns a channel that is closed on the next add or remove.
func (t *Tracker) Changed() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changed
}

// WaitLen blocks until at least n handles are live or ctx ends.
func (t *Tracker) WaitLen(ctx context.Context, n int) error {
	for {
		t.mu.RLock()
		if len(t.handles) >= n {
			t.mu.RUnlock()
			return nil
		}
		changed := t.changed
		t.mu.RUnlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
