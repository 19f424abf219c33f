package testutil

import (
	"net"
	"os"
	"testing"
	"time"
)

const (
	// DefaultSAMAddress is the default SAM bridge address for tests.
	DefaultSAMAddress = "127.0.0.1:7656"

	// DefaultDialTimeout is the timeout for SAM connectivity checks.
	DefaultDialTimeout = 5 * time.Second
)

// SAMAddress returns the SAM bridge used by I2P tests, taken from
// MONGOPOOL_SAM_ADDRESS when set.
func SAMAddress() string {
	if addr := os.Getenv("MONGOPOOL_SAM_ADDRESS"); addr != "" {
		return addr
	}
	return DefaultSAMAddress
}

// RequireSAM skips t unless a SAM bridge accepts connections. I2P tests
// need a running router with SAM enabled.
func RequireSAM(t testing.TB) string {
	t.Helper()

	addr := SAMAddress()
	conn, err := net.DialTimeout("tcp", addr, DefaultDialTimeout)
	if err != nil {
		t.Skipf("SAM bridge unavailable at %s: %v", addr, err)
	}
	conn.Close()
	return addr
}
