// Package dialer opens the transport connections a pool supervises.
//
// TCP is the default. Garlic reaches an endpoint published as an I2P
// destination through a local SAM bridge.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	apperrors "github.com/go-i2p/mongopool/lib/errors"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Networks understood by New.
const (
	NetworkTCP = "tcp"
	NetworkI2P = "i2p"
)

// Dialer opens a connection to address.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Func adapts a function to the Dialer interface.
type Func func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext calls f.
func (f Func) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// TCP dials plain TCP connections.
type TCP struct {
	// Timeout bounds a single dial. Zero means no limit beyond ctx.
	Timeout time.Duration
	// KeepAlive is the TCP keep-alive period. Zero uses the system default,
	// negative disables keep-alives.
	KeepAlive time.Duration
}

// DialContext implements Dialer.
func (d TCP) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if network == "" {
		network = NetworkTCP
	}
	nd := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	conn, err := nd.DialContext(ctx, network, address)
	if err != nil {
		return nil, dialError(address, err)
	}
	return conn, nil
}

// dialError codes a failed dial. Timeouts match ErrTimeout, refused
// connections ErrUnavailable and anything else ErrConnection. The cause
// stays in the chain.
func dialError(address string, err error) error {
	var (
		code     = apperrors.CodeConnection
		sentinel = apperrors.ErrConnection
		ne       net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), apperrors.As(err, &ne) && ne.Timeout():
		code, sentinel = apperrors.CodeTimeout, apperrors.ErrTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		code, sentinel = apperrors.CodeUnavailable, apperrors.ErrUnavailable
	}
	return apperrors.Wrap(code, "dial "+address, fmt.Errorf("%w: %w", sentinel, err))
}

// Options selects and tunes a Dialer.
type Options struct {
	Network    string
	Timeout    time.Duration
	KeepAlive  time.Duration
	SAMAddress string
	TunnelName string
}

// New returns the Dialer for opts.Network.
func New(opts Options) (Dialer, error) {
	switch opts.Network {
	case "", NetworkTCP, "tcp4", "tcp6":
		return TCP{Timeout: opts.Timeout, KeepAlive: opts.KeepAlive}, nil
	case NetworkI2P:
		name := opts.TunnelName
		if name == "" {
			name = "mongopool"
		}
		return NewGarlic(name, opts.SAMAddress, opts.Timeout), nil
	default:
		log.WithField("network", opts.Network).Warn("unsupported dial network")
		return nil, fmt.Errorf("%q: %w", opts.Network, apperrors.ErrUnsupportedNetwork)
	}
}
