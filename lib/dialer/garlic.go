package dialer

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	apperrors "github.com/go-i2p/mongopool/lib/errors"

	"github.com/go-i2p/i2pkeys"
	"github.com/go-i2p/onramp"
)

// DefaultSAMAddress is the default SAM bridge address.
const DefaultSAMAddress = "127.0.0.1:7656"

// Garlic dials I2P destinations over a SAM bridge. The underlying onramp
// session is created on first use and shared by every connection.
type Garlic struct {
	mu      sync.Mutex
	name    string
	samAddr string
	timeout time.Duration
	garlic  *onramp.Garlic
	closed  bool
}

// NewGarlic returns a Garlic dialer. The SAM session is not opened yet.
func NewGarlic(name, samAddr string, timeout time.Duration) *Garlic {
	if samAddr == "" {
		samAddr = DefaultSAMAddress
	}
	return &Garlic{name: name, samAddr: samAddr, timeout: timeout}
}

// DialContext implements Dialer. The network argument is ignored; address is
// an I2P destination (".i2p" host name or base64 destination) with an
// optional port, which I2P streaming does not use.
func (g *Garlic) DialContext(ctx context.Context, _ string, address string) (net.Conn, error) {
	dest, err := ParseDestination(address)
	if err != nil {
		return nil, err
	}

	session, err := g.session()
	if err != nil {
		return nil, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := session.Dial("tcp", dest)
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, dialError(dest, r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
		// The dial cannot be interrupted; discard its connection when it lands.
		go func() {
			if r := <-ch; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, dialError(dest, ctx.Err())
	}
}

func (g *Garlic) session() (*onramp.Garlic, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, fmt.Errorf("garlic dialer: %w", apperrors.ErrClosed)
	}
	if g.garlic != nil {
		return g.garlic, nil
	}

	garlic, err := onramp.NewGarlic(g.name, g.samAddr, onramp.OPT_DEFAULTS)
	if err != nil {
		return nil, fmt.Errorf("open SAM session: %w", dialError(g.samAddr, err))
	}
	g.garlic = garlic

	log.WithField("tunnel", g.name).WithField("sam", g.samAddr).Info("opened I2P session for pool dialing")
	return garlic, nil
}

// Close releases the SAM session.
func (g *Garlic) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	if g.garlic == nil {
		return nil
	}
	err := g.garlic.Close()
	g.garlic = nil
	return err
}

// ParseDestination validates an I2P address and strips any port.
// Host names ending in ".i2p" (including ".b32.i2p") pass through; anything
// else must parse as a full base64 destination.
func ParseDestination(address string) (string, error) {
	host := address
	if h, _, err := net.SplitHostPort(address); err == nil {
		host = h
	}
	if host == "" {
		return "", fmt.Errorf("%q: %w", address, apperrors.ErrInvalidDestination)
	}

	if strings.HasSuffix(host, ".i2p") {
		return host, nil
	}

	addr, err := i2pkeys.NewI2PAddrFromString(host)
	if err != nil {
		return "", fmt.Errorf("%q: %w", address, apperrors.ErrInvalidDestination)
	}
	return addr.Base32(), nil
}
