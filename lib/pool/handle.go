package pool

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	apperrors "github.com/go-i2p/mongopool/lib/errors"
	"github.com/go-i2p/mongopool/lib/wire"

	"github.com/google/uuid"
)

// readBufferSize is the size of each socket read handed to the protocol.
const readBufferSize = 16 * 1024

// Handle is one established connection owned by a Factory. It is the
// wire.Transport given to the connection's Protocol.
type Handle struct {
	id          string
	slot        int
	owner       *Factory
	conn        net.Conn
	protocol    wire.Protocol
	connectedAt time.Time

	writeMu sync.Mutex

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	local     bool
	err       error
	done      chan struct{}
}

func newHandle(owner *Factory, slot int, conn net.Conn, protocol wire.Protocol) *Handle {
	return &Handle{
		id:          uuid.NewString(),
		slot:        slot,
		owner:       owner,
		conn:        conn,
		protocol:    protocol,
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// ID returns the handle's unique identifier.
func (h *Handle) ID() string { return h.id }

// Slot returns the connection slot (0..size-1) the handle occupies.
func (h *Handle) Slot() int { return h.slot }

// Factory returns the factory that owns the handle.
func (h *Handle) Factory() *Factory { return h.owner }

// Protocol returns the codec bound to this connection.
func (h *Handle) Protocol() wire.Protocol { return h.protocol }

// ConnectedAt returns when the connection was established.
func (h *Handle) ConnectedAt() time.Time { return h.connectedAt }

// RemoteAddr implements wire.Transport.
func (h *Handle) RemoteAddr() net.Addr { return h.conn.RemoteAddr() }

// LocalAddr returns the local network address.
func (h *Handle) LocalAddr() net.Addr { return h.conn.LocalAddr() }

// Done returns a channel closed once the transport is gone.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns why the transport closed, or nil while it is open.
// A handle closed with Close reports ErrHandleClosed; an orderly remote
// shutdown reports io.EOF.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Closed reports whether the transport is gone or Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed || h.local
}

// Write implements wire.Transport. A failed write tears the connection
// down; the owning factory then unregisters the handle.
func (h *Handle) Write(p []byte) (int, error) {
	if h.Closed() {
		return 0, apperrors.ErrHandleClosed
	}

	h.writeMu.Lock()
	n, err := h.conn.Write(p)
	h.writeMu.Unlock()

	if err != nil {
		h.fail(err)
		return n, fmt.Errorf("write to %s: %w", h.conn.RemoteAddr(), err)
	}
	return n, nil
}

// Close implements wire.Transport. The owning factory observes the loss
// like any other and, with reconnect enabled, replaces the connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	if !h.closed {
		h.local = true
	}
	h.mu.Unlock()

	return h.shutdown()
}

func (h *Handle) String() string {
	return fmt.Sprintf("handle %s slot %d %s", h.id, h.slot, h.conn.RemoteAddr())
}

// fail records err as the cause unless a cause is already known, then
// closes the socket so the reader exits.
func (h *Handle) fail(err error) {
	h.mu.Lock()
	if h.err == nil && !h.local {
		h.err = err
	}
	h.mu.Unlock()

	_ = h.shutdown()
}

func (h *Handle) shutdown() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.conn.Close()
	})
	return err
}

// finish marks the transport gone and settles the reported cause.
func (h *Handle) finish(readErr error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return h.err
	}
	h.closed = true

	switch {
	case h.local:
		h.err = apperrors.ErrHandleClosed
	case h.err != nil:
	case apperrors.Is(readErr, net.ErrClosed):
		h.err = apperrors.ErrHandleClosed
	case readErr == nil:
		h.err = io.EOF
	default:
		h.err = readErr
	}
	close(h.done)
	return h.err
}

// readLoop pumps inbound bytes to the scheduler until the socket fails.
func (h *Handle) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := h.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			h.owner.sched.Post(func() { h.owner.deliver(h, data) })
		}
		if err != nil {
			_ = h.shutdown()
			cause := h.finish(err)
			log.WithField("handle", h.id).WithError(cause).Debug("connection read loop ended")
			h.owner.sched.Post(func() { h.owner.lost(h, cause) })
			return
		}
	}
}
