package pool

import (
	"log/slog"

	"github.com/go-i2p/mongopool/lib/dialer"
	"github.com/go-i2p/mongopool/lib/loop"
	"github.com/go-i2p/mongopool/lib/wire"
)

// Option customizes a Factory.
type Option func(*options)

type options struct {
	scheduler loop.Scheduler
	dialer    dialer.Dialer
	protocol  wire.Factory
	monitor   func(Event)
	logger    *slog.Logger
}

// WithScheduler runs the factory's state transitions on s instead of a
// Loop owned by the factory. The caller keeps ownership of s.
func WithScheduler(s loop.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithDialer replaces the dialer built from the dial configuration.
func WithDialer(d dialer.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithProtocol sets the codec constructed for every new connection.
// The default discards inbound data.
func WithProtocol(f wire.Factory) Option {
	return func(o *options) { o.protocol = f }
}

// WithMonitor receives every pool Event on the scheduler. fn must not block.
func WithMonitor(fn func(Event)) Option {
	return func(o *options) { o.monitor = fn }
}

// WithLogger sets the logger for connection lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}
