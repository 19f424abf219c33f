package pool

import (
	"fmt"
	"time"
)

// EventType identifies a pool lifecycle event.
type EventType string

const (
	// PoolCreated is emitted once, after the initial connect attempts start.
	PoolCreated EventType = "PoolCreated"
	// ConnectionCreated is emitted when a handle joins the tracker.
	ConnectionCreated EventType = "ConnectionCreated"
	// ConnectionFailed is emitted when a connect attempt fails.
	ConnectionFailed EventType = "ConnectionFailed"
	// ConnectionClosed is emitted when a handle's transport closes and the
	// handle leaves the tracker.
	ConnectionClosed EventType = "ConnectionClosed"
	// RetryScheduled is emitted when a slot is about to be redialed.
	RetryScheduled EventType = "RetryScheduled"
	// PoolReady is emitted when the readiness signal resolves.
	PoolReady EventType = "PoolReady"
	// PoolClosed is emitted by Stop.
	PoolClosed EventType = "PoolClosed"
)

// Event describes one change in a pool. Fields that do not apply to the
// event type are zero.
type Event struct {
	Type     EventType
	Time     time.Time
	Address  string
	Slot     int
	HandleID string
	// Attempt is the 1-based retry number of a RetryScheduled event.
	Attempt int
	// Delay is how long a RetryScheduled slot waits before dialing.
	Delay time.Duration
	Err   error
}

func (e Event) String() string {
	s := fmt.Sprintf("%s %s slot=%d", e.Type, e.Address, e.Slot)
	if e.HandleID != "" {
		s += " handle=" + e.HandleID
	}
	if e.Type == RetryScheduled {
		s += fmt.Sprintf(" attempt=%d delay=%s", e.Attempt, e.Delay)
	}
	if e.Err != nil {
		s += " err=" + e.Err.Error()
	}
	return s
}
