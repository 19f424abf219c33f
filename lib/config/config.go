// Package config holds the configuration of a connection pool: where the
// endpoint is, how many connections to keep, and how to behave when they drop.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-i2p/mongopool/lib/backoff"
	"github.com/go-i2p/mongopool/lib/dialer"
	apperrors "github.com/go-i2p/mongopool/lib/errors"
	"github.com/go-i2p/mongopool/lib/validation"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values
const (
	DefaultHost      = "localhost"
	DefaultPort      = 27017
	DefaultSize      = 5
	DefaultReconnect = true
	DefaultDefer     = true

	DefaultDialTimeout = 10 * time.Second
	DefaultKeepAlive   = 30 * time.Second
)

// Config holds all configuration for a pool.
type Config struct {
	Pool    PoolConfig    `toml:"pool"`
	Dial    DialConfig    `toml:"dial"`
	Backoff BackoffConfig `toml:"backoff"`
}

// PoolConfig is the endpoint and the connection policy.
type PoolConfig struct {
	// Host is the hostname or IP of the database server
	Host string `toml:"host"`
	// Port is the TCP port of the database server
	Port int `toml:"port"`
	// Size is the number of connections to keep open
	Size int `toml:"size"`
	// Reconnect re-establishes failed and dropped connections forever
	Reconnect bool `toml:"reconnect"`
	// Defer makes pool creation hand back a readiness signal instead of the
	// live tracker
	Defer bool `toml:"defer"`
}

// DialConfig tunes how connections are opened.
type DialConfig struct {
	// Network is "tcp" (default) or "i2p"
	Network string `toml:"network"`
	// Timeout bounds each connect attempt
	Timeout Duration `toml:"timeout"`
	// KeepAlive is the TCP keep-alive period
	KeepAlive Duration `toml:"keep_alive"`
	// SAMAddress is the SAM bridge (host:port) used when Network is "i2p".
	// Empty means 127.0.0.1:7656.
	SAMAddress string `toml:"sam_address,omitempty"`
	// TunnelName names the I2P session when Network is "i2p"
	TunnelName string `toml:"tunnel_name,omitempty"`
	// MaxRate caps connect attempts per second across the pool; 0 is unlimited
	MaxRate float64 `toml:"max_rate"`
	// Burst is how many attempts may start back to back under MaxRate;
	// 0 means the pool size
	Burst int `toml:"burst"`
}

// BackoffConfig is the delay schedule between reconnect attempts.
type BackoffConfig struct {
	InitialDelay Duration `toml:"initial_delay"`
	MaxDelay     Duration `toml:"max_delay"`
	Multiplier   float64  `toml:"multiplier"`
	Jitter       float64  `toml:"jitter"`
}

// DefaultConfig returns a Config with the standard defaults: five
// connections to localhost:27017, reconnecting, deferred.
func DefaultConfig() *Config {
	p := backoff.DefaultPolicy()
	return &Config{
		Pool: PoolConfig{
			Host:      DefaultHost,
			Port:      DefaultPort,
			Size:      DefaultSize,
			Reconnect: DefaultReconnect,
			Defer:     DefaultDefer,
		},
		Dial: DialConfig{
			Network:   dialer.NetworkTCP,
			Timeout:   Duration(DefaultDialTimeout),
			KeepAlive: Duration(DefaultKeepAlive),
		},
		Backoff: BackoffConfig{
			InitialDelay: Duration(p.InitialDelay),
			MaxDelay:     Duration(p.MaxDelay),
			Multiplier:   p.Multiplier,
			Jitter:       p.Jitter,
		},
	}
}

// LoadConfig reads configuration from a TOML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors. Every failure matches
// errors.ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validation.Positive("pool.size", c.Pool.Size); err != nil {
		return invalid(err)
	}

	switch c.Dial.Network {
	case "", dialer.NetworkTCP, "tcp4", "tcp6":
		if err := validation.First(
			validation.Host("pool.host", c.Pool.Host),
			validation.Port("pool.port", c.Pool.Port),
		); err != nil {
			return invalid(err)
		}
	case dialer.NetworkI2P:
		if err := validation.Required("pool.host", c.Pool.Host); err != nil {
			return invalid(err)
		}
		if _, err := dialer.ParseDestination(c.Pool.Host); err != nil {
			return apperrors.Validation("pool.host is not an i2p destination: %v", err)
		}
		if c.Dial.SAMAddress != "" {
			if err := validation.HostPort("dial.sam_address", c.Dial.SAMAddress); err != nil {
				return invalid(err)
			}
		}
	default:
		return apperrors.Validation("dial.network %q is not supported", c.Dial.Network)
	}

	if err := validation.First(
		validation.NonNegativeDuration("dial.timeout", c.Dial.Timeout.Std()),
		validation.NonNegativeDuration("dial.keep_alive", c.Dial.KeepAlive.Std()),
		validation.MinFloat("dial.max_rate", c.Dial.MaxRate, 0),
		validation.NonNegative("dial.burst", c.Dial.Burst),
		validation.NonNegativeDuration("backoff.initial_delay", c.Backoff.InitialDelay.Std()),
		validation.NonNegativeDuration("backoff.max_delay", c.Backoff.MaxDelay.Std()),
		validation.FloatRange("backoff.jitter", c.Backoff.Jitter, 0, 1),
	); err != nil {
		return invalid(err)
	}
	if c.Backoff.InitialDelay > 0 {
		if err := validation.MinFloat("backoff.multiplier", c.Backoff.Multiplier, 1); err != nil {
			return invalid(err)
		}
	}
	return nil
}

func invalid(err error) error {
	return apperrors.Validation("%v", err)
}

// Address returns host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Pool.Host, strconv.Itoa(c.Pool.Port))
}

// BackoffPolicy converts the backoff section.
func (c *Config) BackoffPolicy() backoff.Policy {
	return backoff.Policy{
		InitialDelay: c.Backoff.InitialDelay.Std(),
		MaxDelay:     c.Backoff.MaxDelay.Std(),
		Multiplier:   c.Backoff.Multiplier,
		Jitter:       c.Backoff.Jitter,
	}
}

// DialOptions converts the dial section.
func (c *Config) DialOptions() dialer.Options {
	return dialer.Options{
		Network:    c.Dial.Network,
		Timeout:    c.Dial.Timeout.Std(),
		KeepAlive:  c.Dial.KeepAlive.Std(),
		SAMAddress: c.Dial.SAMAddress,
		TunnelName: c.Dial.TunnelName,
	}
}

// DialLimit returns the attempt rate and burst for a pool of the
// configured size. A zero rate means attempts are not limited.
func (c *Config) DialLimit() (rate float64, burst int) {
	burst = c.Dial.Burst
	if burst == 0 {
		burst = c.Pool.Size
	}
	return c.Dial.MaxRate, burst
}

// Clone returns a copy that shares nothing with c.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
