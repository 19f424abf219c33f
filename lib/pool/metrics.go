package pool

import "github.com/go-i2p/mongopool/lib/metrics"

// Connection lifecycle metrics, aggregated over every pool in the process.
var (
	// ConnectAttempts is the total number of dials started.
	ConnectAttempts = metrics.NewCounter(
		"mongopool_connect_attempts_total",
		"Total number of connect attempts",
	)
	// ConnectSuccesses is the number of dials that produced a connection.
	ConnectSuccesses = metrics.NewCounter(
		"mongopool_connect_successes_total",
		"Total number of successful connects",
	)
	// ConnectFailures is the number of dials that failed.
	ConnectFailures = metrics.NewCounter(
		"mongopool_connect_failures_total",
		"Total number of failed connect attempts",
	)
	// ConnectionsLost is the number of established connections that closed.
	ConnectionsLost = metrics.NewCounter(
		"mongopool_connections_lost_total",
		"Total number of established connections that were lost",
	)
	// RetriesScheduled is the number of redials scheduled by reconnecting pools.
	RetriesScheduled = metrics.NewCounter(
		"mongopool_retries_scheduled_total",
		"Total number of reconnect attempts scheduled",
	)
	// ConnectionsLive is the number of connections currently tracked.
	ConnectionsLive = metrics.NewGauge(
		"mongopool_connections_live",
		"Current number of live pooled connections",
	)
	// PoolsReady is the number of running pools whose readiness signal resolved.
	PoolsReady = metrics.NewGauge(
		"mongopool_pools_ready",
		"Current number of ready pools",
	)
	// ConnectLatency tracks how long each dial takes, successful or not.
	ConnectLatency = metrics.NewHistogram(
		"mongopool_connect_duration_seconds",
		"Time spent establishing a connection",
		metrics.DefaultLatencyBuckets,
	)
)
