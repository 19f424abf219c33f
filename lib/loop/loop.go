// Package loop provides the schedulers that serialize a pool's state
// transitions. Every connect result, transport loss and readiness
// notification is posted to a Scheduler and runs there one callback at a
// time, so pool state never needs finer-grained locking.
//
// Loop is the production scheduler: a single goroutine draining a FIFO
// queue. Manual is a deterministic double for tests: nothing runs until the
// test asks for it.
package loop

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Scheduler runs callbacks on a later turn, in the order they were posted.
type Scheduler interface {
	// Post queues fn. It never blocks and never runs fn synchronously.
	// It returns false if the scheduler has been stopped and fn was dropped.
	Post(fn func()) bool
}

// Loop is a single-goroutine event loop.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}

	turns atomic.Uint64
}

// New starts a Loop.
func New() *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Post implements Scheduler.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Turns returns the number of callbacks run so far.
func (l *Loop) Turns() uint64 {
	return l.turns.Load()
}

// Stop halts the loop and waits for the running callback, if any, to return.
// Callbacks still queued are dropped. Stop must not be called from a callback.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	dropped := len(l.queue)
	l.queue = nil
	l.mu.Unlock()

	close(l.stopCh)
	<-l.done

	if dropped > 0 {
		log.WithField("dropped", dropped).Debug("event loop stopped with pending callbacks")
	}
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if l.stopped || len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			invoke(fn)
			l.turns.Add(1)
		}
	}
}

// invoke runs fn, containing any panic so one bad callback cannot kill the loop.
func invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("scheduled callback panicked")
		}
	}()
	fn()
}
