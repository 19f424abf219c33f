package pool

import (
	"context"

	"github.com/go-i2p/mongopool/lib/config"
	apperrors "github.com/go-i2p/mongopool/lib/errors"
	"github.com/go-i2p/mongopool/lib/future"
)

// Result is what pool creation hands back. Exactly one of Ready and
// Tracker is set: Ready when the configuration defers, Tracker otherwise.
type Result struct {
	Factory *Factory
	// Ready resolves with the tracker once the first connection is up.
	// It never carries an error and, if no connection ever succeeds,
	// never resolves.
	Ready *future.Signal[*Tracker]
	// Tracker is the live, possibly still empty, connection registry.
	Tracker *Tracker
}

// Deferred reports whether the result carries a readiness signal.
func (r *Result) Deferred() bool {
	return r.Ready != nil
}

// Await returns the tracker. In deferred mode it blocks until the pool is
// ready, ctx ends, or the pool is stopped before it became ready
// (errors.ErrPoolStopped). Connect failures never end the wait.
func (r *Result) Await(ctx context.Context) (*Tracker, error) {
	if r.Ready == nil {
		return r.Tracker, nil
	}

	select {
	case <-r.Ready.Done():
	case <-r.Factory.Done():
		if !r.Ready.Resolved() {
			return nil, apperrors.ErrPoolStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	tracker, _ := r.Ready.Value()
	return tracker, nil
}

// Stop stops the underlying factory.
func (r *Result) Stop() {
	r.Factory.Stop()
}

// ConnectionPool starts a factory that keeps cfg.Pool.Size connections to
// cfg.Address(). A nil cfg means config.DefaultConfig(). With
// cfg.Pool.Defer the result carries the readiness signal; otherwise it
// carries the tracker immediately, before any connect has finished.
// Connect failures are never returned; the only errors are configuration
// errors wrapping errors.ErrInvalidConfig.
func ConnectionPool(cfg *config.Config, opts ...Option) (*Result, error) {
	f, err := NewFactory(cfg, opts...)
	if err != nil {
		return nil, err
	}

	r := &Result{Factory: f}
	if cfg == nil || cfg.Pool.Defer {
		r.Ready = f.Ready()
	} else {
		r.Tracker = f.Tracker()
	}
	return r, nil
}

// Connection is ConnectionPool with a single connection slot.
func Connection(cfg *config.Config, opts ...Option) (*Result, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	} else {
		cfg = cfg.Clone()
	}
	cfg.Pool.Size = 1
	return ConnectionPool(cfg, opts...)
}
