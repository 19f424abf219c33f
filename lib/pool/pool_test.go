package pool

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/mongopool/lib/config"
	"github.com/go-i2p/mongopool/lib/testutil"
	"github.com/go-i2p/mongopool/lib/wire"
)

func serverConfig(t *testing.T, addr string, size int) *config.Config {
	t.Helper()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Pool.Host = host
	cfg.Pool.Port = p
	cfg.Pool.Size = size
	cfg.Dial.Timeout = config.Duration(time.Second)
	cfg.Backoff.InitialDelay = config.Duration(10 * time.Millisecond)
	cfg.Backoff.MaxDelay = config.Duration(50 * time.Millisecond)
	cfg.Backoff.Multiplier = 2
	cfg.Backoff.Jitter = 0
	return cfg
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConnectionPoolFillsToSize(t *testing.T) {
	srv := testutil.StartMockServer(t)

	res, err := ConnectionPool(serverConfig(t, srv.Addr(), 5))
	require.NoError(t, err)
	defer res.Stop()

	tracker, err := res.Await(awaitCtx(t))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, tracker.Len(), 1)

	require.NoError(t, tracker.WaitLen(awaitCtx(t), 5))
	assert.Equal(t, 5, tracker.Len())
	assert.Eventually(t, func() bool { return srv.Accepted() == 5 }, 2*time.Second, 10*time.Millisecond)

	stats := res.Factory.Stats()
	assert.True(t, stats.Ready)
	assert.Equal(t, 5, stats.Live)
	assert.Zero(t, stats.Failures)
}

func TestImmediateModeReturnsTracker(t *testing.T) {
	srv := testutil.StartMockServer(t)
	cfg := serverConfig(t, srv.Addr(), 2)
	cfg.Pool.Defer = false

	res, err := ConnectionPool(cfg)
	require.NoError(t, err)
	defer res.Stop()

	require.NotNil(t, res.Tracker)
	assert.Nil(t, res.Ready)
	assert.False(t, res.Deferred())

	tracker, err := res.Await(context.Background())
	require.NoError(t, err)
	assert.Same(t, res.Tracker, tracker)

	require.NoError(t, tracker.WaitLen(awaitCtx(t), 2))
}

func TestImmediateModeUnreachableIsEmpty(t *testing.T) {
	cfg := serverConfig(t, testutil.FreeAddr(t), 3)
	cfg.Pool.Defer = false
	cfg.Pool.Reconnect = false

	res, err := ConnectionPool(cfg)
	require.NoError(t, err)
	defer res.Stop()

	assert.Zero(t, res.Tracker.Len())
	assert.Eventually(t, func() bool { return res.Factory.Stats().Abandoned == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, res.Tracker.Len())
}

func TestReconnectAfterOutage(t *testing.T) {
	addr := testutil.FreeAddr(t)

	res, err := ConnectionPool(serverConfig(t, addr, 2))
	require.NoError(t, err)
	defer res.Stop()

	require.Eventually(t, func() bool { return res.Factory.Stats().Failures >= 2 }, 5*time.Second, 5*time.Millisecond)
	assert.False(t, res.Ready.Resolved())

	srv, err := testutil.ListenMockServer(addr)
	require.NoError(t, err)
	defer srv.Close()

	tracker, err := res.Await(awaitCtx(t))
	require.NoError(t, err)
	require.NoError(t, tracker.WaitLen(awaitCtx(t), 2))
	assert.GreaterOrEqual(t, res.Factory.Stats().Retries, uint64(2))
}

func TestDroppedConnectionsAreReplaced(t *testing.T) {
	srv := testutil.StartMockServer(t)

	res, err := ConnectionPool(serverConfig(t, srv.Addr(), 3))
	require.NoError(t, err)
	defer res.Stop()

	tracker, err := res.Await(awaitCtx(t))
	require.NoError(t, err)
	require.NoError(t, tracker.WaitLen(awaitCtx(t), 3))
	before := tracker.Snapshot()
	require.Eventually(t, func() bool { return srv.Open() == 3 }, 5*time.Second, 5*time.Millisecond)

	srv.DropAll()

	require.Eventually(t, func() bool {
		if tracker.Len() != 3 {
			return false
		}
		for _, h := range tracker.Snapshot() {
			for _, old := range before {
				if h == old {
					return false
				}
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	for _, h := range before {
		assert.True(t, h.Closed())
	}
	assert.Equal(t, uint64(3), res.Factory.Stats().Lost)
	assert.True(t, res.Ready.Resolved(), "pool stays ready")
}

func TestServerOutageEmptiesTracker(t *testing.T) {
	srv := testutil.StartMockServer(t)

	res, err := ConnectionPool(serverConfig(t, srv.Addr(), 2))
	require.NoError(t, err)
	defer res.Stop()

	tracker, err := res.Await(awaitCtx(t))
	require.NoError(t, err)
	require.NoError(t, tracker.WaitLen(awaitCtx(t), 2))
	require.Eventually(t, func() bool { return srv.Open() == 2 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Stop())
	require.Eventually(t, func() bool { return tracker.Len() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, res.Factory.Stats().Ready)

	require.NoError(t, srv.Start())
	require.NoError(t, tracker.WaitLen(awaitCtx(t), 2))
}

func TestConnectionIsSingleSlotPool(t *testing.T) {
	srv := testutil.StartMockServer(t)

	single, err := Connection(serverConfig(t, srv.Addr(), 4))
	require.NoError(t, err)
	defer single.Stop()

	pooled, err := ConnectionPool(serverConfig(t, srv.Addr(), 1))
	require.NoError(t, err)
	defer pooled.Stop()

	for _, res := range []*Result{single, pooled} {
		assert.Equal(t, 1, res.Factory.Size())
		assert.True(t, res.Deferred())

		tracker, err := res.Await(awaitCtx(t))
		require.NoError(t, err)
		assert.Equal(t, 1, tracker.Len())
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, srv.Accepted())
}

func TestWritesAreEchoed(t *testing.T) {
	srv := testutil.StartMockServer(t)
	srv.SetGreeting([]byte("hi"))
	recs := &recorders{}

	res, err := Connection(serverConfig(t, srv.Addr(), 1), WithProtocol(recs.factory))
	require.NoError(t, err)
	defer res.Stop()

	tracker, err := res.Await(awaitCtx(t))
	require.NoError(t, err)
	h, ok := tracker.At(0)
	require.True(t, ok)

	rec := recs.at(0)
	require.Eventually(t, func() bool { return string(rec.Data()) == "hi" }, 5*time.Second, 5*time.Millisecond)

	_, err = h.Write([]byte(" there"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return string(rec.Data()) == "hi there" }, 5*time.Second, 5*time.Millisecond)

	var _ wire.Transport = h
	assert.Equal(t, srv.Addr(), h.RemoteAddr().String())
}

func TestStopWithOwnLoop(t *testing.T) {
	srv := testutil.StartMockServer(t)
	events := &eventLog{}

	res, err := ConnectionPool(serverConfig(t, srv.Addr(), 3), WithMonitor(events.record))
	require.NoError(t, err)

	tracker, err := res.Await(awaitCtx(t))
	require.NoError(t, err)
	require.NoError(t, tracker.WaitLen(awaitCtx(t), 3))
	require.Eventually(t, func() bool { return srv.Open() == 3 }, 5*time.Second, 5*time.Millisecond)

	res.Stop()
	assert.Zero(t, tracker.Len())
	assert.True(t, res.Factory.Stats().Stopped)
	assert.Eventually(t, func() bool { return srv.Open() == 0 }, 5*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, srv.Accepted(), "no reconnect after stop")
	types := events.types()
	assert.Equal(t, PoolClosed, types[len(types)-1])
	assert.Equal(t, 1, events.count(PoolCreated))

	res.Stop()
}
