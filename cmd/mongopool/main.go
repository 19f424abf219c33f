// mongopool keeps a pool of connections open to a MongoDB-style server
// and reconnects them when they drop.
//
// Usage:
//
//	mongopool [flags]
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "~/.mongopool/config.toml")
//	-host string
//	    Server host (overrides config)
//	-port int
//	    Server port (overrides config)
//	-size int
//	    Number of connections (overrides config)
//	-no-reconnect
//	    Abandon connections that fail instead of redialing them
//	-immediate
//	    Start without waiting for the first connection
//	-metrics string
//	    Address to serve /metrics on, e.g. 127.0.0.1:9100
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-i2p/mongopool/lib/config"
	"github.com/go-i2p/mongopool/lib/metrics"
	"github.com/go-i2p/mongopool/lib/pool"
	"github.com/go-i2p/mongopool/version"
)

// statusInterval is how often a running pool logs its counters.
const statusInterval = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// options holds the parsed command line.
type options struct {
	configPath  string
	host        string
	port        int
	size        int
	noReconnect bool
	immediate   bool
	metricsAddr string
	verbose     bool
	showVersion bool

	set map[string]bool
}

func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".mongopool", "config.toml")
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("mongopool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to configuration file")
	fs.StringVar(&opts.host, "host", "", "Server host (overrides config)")
	fs.IntVar(&opts.port, "port", 0, "Server port (overrides config)")
	fs.IntVar(&opts.size, "size", 0, "Number of connections (overrides config)")
	fs.BoolVar(&opts.noReconnect, "no-reconnect", false, "Abandon connections that fail instead of redialing them")
	fs.BoolVar(&opts.immediate, "immediate", false, "Start without waiting for the first connection")
	fs.StringVar(&opts.metricsAddr, "metrics", "", "Address to serve /metrics on")
	fs.BoolVar(&opts.verbose, "v", false, "Enable verbose logging")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "mongopool - persistent database connection pool\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  mongopool [flags]\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// loadConfig reads the configuration file and applies command-line
// overrides on top of it.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.set["host"] {
		cfg.Pool.Host = opts.host
	}
	if opts.set["port"] {
		cfg.Pool.Port = opts.port
	}
	if opts.set["size"] {
		cfg.Pool.Size = opts.size
	}
	if opts.noReconnect {
		cfg.Pool.Reconnect = false
	}
	if opts.immediate {
		cfg.Pool.Defer = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func run(args []string, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if opts.showVersion {
		fmt.Println(version.Banner())
		return 0
	}

	logger := newLogger(stderr, opts.verbose)

	cfg, err := loadConfig(opts)
	if err != nil {
		logger.Error("failed to load config", "path", opts.configPath, "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.RecordStartTime()
	var metricsServer *http.Server
	if opts.metricsAddr != "" {
		metricsServer = serveMetrics(opts.metricsAddr, logger)
	}

	res, err := pool.ConnectionPool(cfg,
		pool.WithLogger(logger),
		pool.WithMonitor(func(e pool.Event) {
			logger.Debug("pool event", "event", e.String())
		}))
	if err != nil {
		logger.Error("failed to create pool", "error", err)
		return 1
	}

	logger.Info("mongopool started",
		"address", cfg.Address(),
		"size", cfg.Pool.Size,
		"reconnect", cfg.Pool.Reconnect,
		"defer", cfg.Pool.Defer,
		"version", version.Full())

	go func() {
		tracker, err := res.Await(ctx)
		if err != nil {
			return
		}
		logger.Info("pool available", "live", tracker.Len())
	}()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			logger.Info("received signal, shutting down")
			break loop
		case <-ticker.C:
			s := res.Factory.Stats()
			logger.Info("pool status",
				"live", s.Live,
				"size", s.Size,
				"ready", s.Ready,
				"attempts", s.Attempts,
				"failures", s.Failures,
				"lost", s.Lost)
		}
	}

	res.Stop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
	}

	logger.Info("mongopool stopped")
	return 0
}

func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
