// Package pool keeps a fixed number of connections open to one database
// server and reconnects them when they fail.
//
// A Factory dials Size connections to host:port. Every established
// connection becomes a Handle, is appended to the pool's Tracker and is
// driven by a wire.Protocol built for it. When a connect attempt fails or
// a connection drops, the handle leaves the tracker and, with reconnect
// enabled, the slot is redialed after a backoff delay.
//
// # Basic Usage
//
//	cfg := config.DefaultConfig()
//	cfg.Pool.Host = "db.example.net"
//	cfg.Pool.Size = 10
//
//	res, err := pool.ConnectionPool(cfg, pool.WithProtocol(newCodec))
//	if err != nil {
//	    return err // configuration error
//	}
//	defer res.Stop()
//
//	tracker, err := res.Await(ctx)
//	if err != nil {
//	    return err // ctx expired before the first connection
//	}
//	h, _ := tracker.At(0)
//	h.Write(request)
//
// With cfg.Pool.Defer false, ConnectionPool returns the tracker at once
// and callers watch it fill with Tracker.WaitLen or Tracker.Changed.
//
// # Scheduling
//
// Pool state changes, protocol callbacks and monitor events run one at a
// time on a loop.Scheduler. Each factory owns a loop.Loop unless one is
// supplied with WithScheduler; tests pass a loop.Manual to step turns by
// hand. The readiness signal is resolved one turn after the first handle
// is appended, so a resolved signal always sees that handle.
//
// # Metrics
//
// Connection metrics are registered with the metrics package:
//   - mongopool_connect_attempts_total: Dials started
//   - mongopool_connect_successes_total: Dials that connected
//   - mongopool_connect_failures_total: Dials that failed
//   - mongopool_connections_lost_total: Established connections that closed
//   - mongopool_retries_scheduled_total: Reconnects scheduled
//   - mongopool_connections_live: Connections currently tracked
//   - mongopool_pools_ready: Ready pools
//   - mongopool_connect_duration_seconds: Dial latency
package pool
