package dialer

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	apperrors "github.com/go-i2p/mongopool/lib/errors"
	"github.com/go-i2p/mongopool/lib/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPDial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	d := TCP{Timeout: time.Second}
	conn, err := d.DialContext(context.Background(), "", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case c := <-accepted:
		c.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted")
	}
}

func TestTCPDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = TCP{Timeout: time.Second}.DialContext(context.Background(), NetworkTCP, addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Equal(t, apperrors.CodeUnavailable, apperrors.CodeOf(err))
}

func TestTCPDialTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := TCP{}.DialContext(ctx, NetworkTCP, "127.0.0.1:27017")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, apperrors.CodeTimeout, apperrors.CodeOf(err))
}

func TestDialErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		sentinel error
		code     int
	}{
		{"deadline", context.DeadlineExceeded, apperrors.ErrTimeout, apperrors.CodeTimeout},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, apperrors.ErrUnavailable, apperrors.CodeUnavailable},
		{"canceled", context.Canceled, apperrors.ErrConnection, apperrors.CodeConnection},
		{"other", errors.New("tunnel build failed"), apperrors.ErrConnection, apperrors.CodeConnection},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := dialError("db:27017", tc.cause)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.ErrorIs(t, err, tc.cause)
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
			assert.Contains(t, err.Error(), "dial db:27017")
		})
	}
}

func TestFunc(t *testing.T) {
	called := false
	var d Dialer = Func(func(ctx context.Context, network, address string) (net.Conn, error) {
		called = true
		assert.Equal(t, "tcp", network)
		assert.Equal(t, "db:27017", address)
		c, _ := net.Pipe()
		return c, nil
	})

	conn, err := d.DialContext(context.Background(), "tcp", "db:27017")
	require.NoError(t, err)
	conn.Close()
	assert.True(t, called)
}

func TestNew(t *testing.T) {
	d, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, TCP{}, d)

	d, err = New(Options{Network: NetworkI2P})
	require.NoError(t, err)
	g, ok := d.(*Garlic)
	require.True(t, ok)
	assert.Equal(t, DefaultSAMAddress, g.samAddr)
	assert.Equal(t, "mongopool", g.name)
	require.NoError(t, g.Close())

	_, err = New(Options{Network: "udp"})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedNetwork)
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"mongo.i2p", "mongo.i2p", false},
		{"mongo.i2p:27017", "mongo.i2p", false},
		{"abcdefghijklmnopqrstuvwxyz234567abcdefghijklmnopqrst.b32.i2p:27017", "abcdefghijklmnopqrstuvwxyz234567abcdefghijklmnopqrst.b32.i2p", false},
		{":27017", "", true},
		{"localhost:27017", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDestination(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidDestination)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGarlicClosed(t *testing.T) {
	g := NewGarlic("test", "", 0)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())

	_, err := g.DialContext(context.Background(), "", "mongo.i2p:27017")
	assert.ErrorIs(t, err, apperrors.ErrClosed)
}

func TestGarlicSessionIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("I2P session setup is slow")
	}
	sam := testutil.RequireSAM(t)

	g := NewGarlic("mongopool-dialer-test", sam, time.Minute)
	defer g.Close()

	first, err := g.session()
	require.NoError(t, err)
	second, err := g.session()
	require.NoError(t, err)
	assert.Same(t, first, second, "session is shared")

	require.NoError(t, g.Close())
	_, err = g.session()
	assert.ErrorIs(t, err, apperrors.ErrClosed)
}
