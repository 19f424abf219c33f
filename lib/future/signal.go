// Package future provides Signal, a value that is resolved at most once.
//
// A pool uses a Signal to announce that its first connection is up. Waiters
// either select on Done or call Wait; once resolved the value never changes
// and later Resolve calls are ignored.
package future

import (
	"context"
	"sync"
)

// Signal is a single-resolution container for a value of type T.
// The zero value is not usable; create one with New.
type Signal[T any] struct {
	mu       sync.Mutex
	value    T
	resolved bool
	done     chan struct{}
}

// New returns an unresolved Signal.
func New[T any]() *Signal[T] {
	return &Signal[T]{done: make(chan struct{})}
}

// Resolve stores v and wakes every waiter. Only the first call has any
// effect; it returns true for that call and false for all others.
func (s *Signal[T]) Resolve(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved {
		return false
	}
	s.value = v
	s.resolved = true
	close(s.done)
	return true
}

// Done returns a channel closed when the signal resolves.
func (s *Signal[T]) Done() <-chan struct{} {
	return s.done
}

// Resolved reports whether Resolve has been called.
func (s *Signal[T]) Resolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Value returns the resolved value, or the zero value and false.
func (s *Signal[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.resolved
}

// Wait blocks until the signal resolves or ctx ends. The only error it
// returns is ctx.Err(); a Signal carries no failure of its own.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-s.done:
		v, _ := s.Value()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
