package testutil

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockServerEcho(t *testing.T) {
	srv := StartMockServer(t)
	srv.SetGreeting([]byte("hello\n"))

	conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	buf := make([]byte, 6)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(buf))

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf = make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	assert.Equal(t, 1, srv.Accepted())
	assert.Equal(t, "127.0.0.1", srv.Host())
	assert.NotZero(t, srv.Port())
}

func TestMockServerDropAll(t *testing.T) {
	srv := StartMockServer(t)

	conn, err := net.DialTimeout("tcp", srv.Addr(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Open() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, srv.DropAll())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, srv.Running())
}

func TestMockServerRestart(t *testing.T) {
	srv := StartMockServer(t)
	addr := srv.Addr()

	require.NoError(t, srv.Stop())
	assert.False(t, srv.Running())

	_, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)

	require.NoError(t, srv.Start())
	assert.Equal(t, addr, srv.Addr())

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	conn.Close()

	assert.Error(t, srv.Start(), "already running")
}

func TestFreeAddr(t *testing.T) {
	addr := FreeAddr(t)

	_, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)

	srv, err := ListenMockServer(addr)
	require.NoError(t, err)
	defer srv.Close()
	assert.Equal(t, addr, srv.Addr())
}
