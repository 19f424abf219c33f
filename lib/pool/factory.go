package pool

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"

	"github.com/go-i2p/mongopool/lib/backoff"
	"github.com/go-i2p/mongopool/lib/config"
	"github.com/go-i2p/mongopool/lib/dialer"
	apperrors "github.com/go-i2p/mongopool/lib/errors"
	"github.com/go-i2p/mongopool/lib/future"
	"github.com/go-i2p/mongopool/lib/loop"
	"github.com/go-i2p/mongopool/lib/ratelimit"
	"github.com/go-i2p/mongopool/lib/wire"
)

var log = logger.GetGoI2PLogger()

// slot is one of the factory's Size connection positions. It holds at most
// one dial or live handle at a time. Fields are owned by the scheduler.
type slot struct {
	index     int
	schedule  *backoff.Schedule
	handle    *Handle
	abandoned bool
}

// Factory opens and maintains the connections of one pool. It dials Size
// connections to a single address, registers each in its Tracker and,
// when reconnect is enabled, redials every slot whose connect fails or
// whose connection drops.
//
// All state transitions run on the factory's scheduler. Dials, socket
// reads and retry waits run on goroutines supervised by the factory and
// post their outcome back to the scheduler.
type Factory struct {
	addr      string
	network   string
	size      int
	reconnect bool

	dialer    dialer.Dialer
	ownDialer io.Closer
	limiter   *ratelimit.Limiter
	sched     loop.Scheduler
	ownLoop   *loop.Loop
	protocol  wire.Factory
	monitor   func(Event)
	logger    *slog.Logger

	tracker *Tracker
	ready   *future.Signal[*Tracker]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	stopping bool
	stopOnce sync.Once
	stopped  atomic.Bool
	done     chan struct{}

	// Owned by the scheduler.
	slots       []*slot
	readyPosted bool

	attempts  atomic.Uint64
	successes atomic.Uint64
	failures  atomic.Uint64
	lostCount atomic.Uint64
	retries   atomic.Uint64
	abandoned atomic.Int64
}

// NewFactory validates cfg and starts a factory dialing cfg.Pool.Size
// connections. A nil cfg means config.DefaultConfig(). The only errors
// returned are configuration errors.
func NewFactory(cfg *config.Config, opts ...Option) (*Factory, error) {
	f, err := newFactory(cfg, opts...)
	if err != nil {
		return nil, err
	}
	f.start()
	return f, nil
}

func newFactory(cfg *config.Config, opts ...Option) (*Factory, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	} else {
		cfg = cfg.Clone()
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Debug("rejecting pool configuration")
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.protocol == nil {
		o.protocol = wire.NewDiscard
	}

	network := cfg.Dial.Network
	if network == "" {
		network = dialer.NetworkTCP
	}

	f := &Factory{
		addr:      cfg.Address(),
		network:   network,
		size:      cfg.Pool.Size,
		reconnect: cfg.Pool.Reconnect,
		dialer:    o.dialer,
		sched:     o.scheduler,
		protocol:  o.protocol,
		monitor:   o.monitor,
		logger:    o.logger,
		tracker:   newTracker(),
		ready:     future.New[*Tracker](),
		done:      make(chan struct{}),
	}

	if f.dialer == nil {
		d, err := dialer.New(cfg.DialOptions())
		if err != nil {
			return nil, err
		}
		f.dialer = d
		if c, ok := d.(io.Closer); ok {
			f.ownDialer = c
		}
	}
	if f.sched == nil {
		f.ownLoop = loop.New()
		f.sched = f.ownLoop
	}

	if rate, burst := cfg.DialLimit(); rate > 0 {
		f.limiter = ratelimit.New(rate, burst)
	}

	policy := cfg.BackoffPolicy()
	f.slots = make([]*slot, f.size)
	for i := range f.slots {
		f.slots[i] = &slot{index: i, schedule: backoff.NewSchedule(policy)}
	}

	f.ctx, f.cancel = context.WithCancel(context.Background())
	return f, nil
}

// start issues the initial connect attempt of every slot.
func (f *Factory) start() {
	f.logger.Info("starting connection pool",
		"address", f.addr,
		"network", f.network,
		"size", f.size,
		"reconnect", f.reconnect)

	f.sched.Post(func() { f.emit(Event{Type: PoolCreated}) })
	for _, s := range f.slots {
		f.dial(s, 0)
	}
}

// Address returns the endpoint every connection is dialed to.
func (f *Factory) Address() string { return f.addr }

// Size returns the number of connection slots.
func (f *Factory) Size() int { return f.size }

// Reconnect reports whether failed and dropped slots are redialed.
func (f *Factory) Reconnect() bool { return f.reconnect }

// Tracker returns the registry of live connections.
func (f *Factory) Tracker() *Tracker { return f.tracker }

// Ready returns the signal resolved, with the tracker, once the first
// connection has been registered.
func (f *Factory) Ready() *future.Signal[*Tracker] { return f.ready }

// Done returns a channel closed when Stop has finished.
func (f *Factory) Done() <-chan struct{} { return f.done }

// spawn runs fn on a supervised goroutine. It returns false once Stop has
// begun.
func (f *Factory) spawn(fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopping {
		return false
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		fn()
	}()
	return true
}

func (f *Factory) isStopping() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopping
}

// dial connects slot s after waiting delay and posts the outcome.
func (f *Factory) dial(s *slot, delay time.Duration) {
	index := s.index
	ok := f.spawn(func() {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-f.ctx.Done():
				return
			}
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(f.ctx); err != nil {
				return
			}
		}

		f.attempts.Add(1)
		ConnectAttempts.Inc()
		start := time.Now()
		conn, err := f.dialer.DialContext(f.ctx, f.network, f.addr)
		ConnectLatency.ObserveSince(start)

		log.WithField("address", f.addr).WithField("slot", index).WithError(err).Debug("dial finished")
		if f.ctx.Err() != nil {
			if conn != nil {
				_ = conn.Close()
			}
			return
		}
		if !f.sched.Post(func() { f.connected(s, conn, err) }) && conn != nil {
			_ = conn.Close()
		}
	})
	if !ok {
		log.WithField("slot", index).Debug("pool stopping, dial skipped")
	}
}

// connected handles the result of a dial on the scheduler.
func (f *Factory) connected(s *slot, conn net.Conn, err error) {
	if err != nil {
		if f.isStopping() {
			return
		}
		f.failed(s, err)
		return
	}

	h := f.register(s, conn)
	if h == nil {
		return
	}
	f.activate(s, h)
}

// register builds a handle for conn and appends it to the tracker. It
// returns nil, closing conn, once Stop has begun.
func (f *Factory) register(s *slot, conn net.Conn) *Handle {
	h := newHandle(f, s.index, conn, f.protocol())

	f.mu.Lock()
	if f.stopping {
		f.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	f.tracker.add(h)
	f.mu.Unlock()

	s.handle = h
	s.schedule.Reset()
	f.successes.Add(1)
	ConnectSuccesses.Inc()
	ConnectionsLive.Inc()

	f.logger.Info("connection established",
		"address", f.addr,
		"slot", s.index,
		"handle", h.id,
		"live", f.tracker.Len())
	return h
}

// activate starts h's reader and announces the connection. A Stop racing
// the registration leaves h settled as closed and unannounced.
func (f *Factory) activate(s *slot, h *Handle) {
	if !f.spawn(h.readLoop) {
		_ = h.shutdown()
		h.finish(net.ErrClosed)
		return
	}
	h.protocol.ConnectionMade(h)
	f.emit(Event{Type: ConnectionCreated, Slot: s.index, HandleID: h.id})

	if !f.readyPosted {
		f.readyPosted = true
		f.sched.Post(f.resolveReady)
	}
}

// failed handles a connect attempt that produced no connection.
func (f *Factory) failed(s *slot, err error) {
	f.failures.Add(1)
	ConnectFailures.Inc()

	f.logger.Warn("connect attempt failed",
		"address", f.addr,
		"slot", s.index,
		"code", apperrors.CodeOf(err),
		"error", err)

	f.emit(Event{Type: ConnectionFailed, Slot: s.index, Err: err})
	f.retry(s)
}

// deliver hands inbound bytes to the connection's protocol.
func (f *Factory) deliver(h *Handle, data []byte) {
	if f.isStopping() {
		return
	}
	h.protocol.DataReceived(data)
}

// lost unregisters a handle whose transport closed and applies the
// reconnection policy to its slot.
func (f *Factory) lost(h *Handle, cause error) {
	if !f.tracker.remove(h) {
		return
	}
	ConnectionsLive.Dec()
	f.lostCount.Add(1)
	ConnectionsLost.Inc()

	s := f.slots[h.slot]
	if s.handle == h {
		s.handle = nil
	}

	f.logger.Warn("connection lost",
		"address", f.addr,
		"slot", h.slot,
		"handle", h.id,
		"error", cause,
		"live", f.tracker.Len())

	h.protocol.ConnectionLost(cause)
	f.emit(Event{Type: ConnectionClosed, Slot: h.slot, HandleID: h.id, Err: cause})
	f.retry(s)
}

// retry redials s after its backoff delay, or abandons it.
func (f *Factory) retry(s *slot) {
	if !f.reconnect || f.isStopping() {
		if !s.abandoned {
			s.abandoned = true
			f.abandoned.Add(1)
		}
		f.logger.Info("connection slot abandoned", "address", f.addr, "slot", s.index)
		return
	}

	delay := s.schedule.Next()
	attempt := s.schedule.Attempts()
	f.retries.Add(1)
	RetriesScheduled.Inc()

	f.logger.Debug("scheduling reconnect",
		"address", f.addr,
		"slot", s.index,
		"attempt", attempt,
		"delay", delay)

	f.emit(Event{Type: RetryScheduled, Slot: s.index, Attempt: attempt, Delay: delay})
	f.dial(s, delay)
}

// resolveReady runs one turn after the first handle was registered.
func (f *Factory) resolveReady() {
	f.mu.Lock()
	if f.stopping {
		f.mu.Unlock()
		return
	}
	resolved := f.ready.Resolve(f.tracker)
	if resolved {
		PoolsReady.Inc()
	}
	f.mu.Unlock()

	if !resolved {
		return
	}
	f.logger.Info("connection pool ready", "address", f.addr, "live", f.tracker.Len())
	f.emit(Event{Type: PoolReady})
}

func (f *Factory) emit(e Event) {
	if f.monitor == nil {
		return
	}
	e.Time = time.Now()
	e.Address = f.addr
	f.monitor(e)
}

// Stop cancels pending dials and retries, closes every live connection,
// waits for the factory's goroutines and stops a scheduler the factory
// created. The tracker is empty when Stop returns and no reconnection
// happens afterwards. The PoolClosed event is delivered on the calling
// goroutine. Stop is idempotent; it must not be called from a callback
// running on the factory's own Loop.
func (f *Factory) Stop() {
	f.stopOnce.Do(f.stop)
}

func (f *Factory) stop() {
	f.mu.Lock()
	f.stopping = true
	handles := f.tracker.Snapshot()
	wasReady := f.ready.Resolved()
	f.mu.Unlock()

	f.cancel()
	for _, h := range handles {
		_ = h.Close()
	}
	f.wg.Wait()

	if n := len(f.tracker.clear()); n > 0 {
		ConnectionsLive.Add(-int64(n))
	}
	if wasReady {
		PoolsReady.Dec()
	}
	if f.ownDialer != nil {
		if err := f.ownDialer.Close(); err != nil {
			f.logger.Warn("closing dialer", "error", err)
		}
	}
	if f.ownLoop != nil {
		f.ownLoop.Stop()
	}
	f.stopped.Store(true)
	close(f.done)

	f.logger.Info("connection pool stopped", "address", f.addr, "closed", len(handles))
	f.emit(Event{Type: PoolClosed})
}

// Stats is a point-in-time view of a factory.
type Stats struct {
	Address   string
	Size      int
	Live      int
	Attempts  uint64
	Successes uint64
	Failures  uint64
	Lost      uint64
	Retries   uint64
	Abandoned int
	Ready     bool
	Stopped   bool
}

// Stats returns current counters.
func (f *Factory) Stats() Stats {
	return Stats{
		Address:   f.addr,
		Size:      f.size,
		Live:      f.tracker.Len(),
		Attempts:  f.attempts.Load(),
		Successes: f.successes.Load(),
		Failures:  f.failures.Load(),
		Lost:      f.lostCount.Load(),
		Retries:   f.retries.Load(),
		Abandoned: int(f.abandoned.Load()),
		Ready:     f.ready.Resolved(),
		Stopped:   f.stopped.Load(),
	}
}
