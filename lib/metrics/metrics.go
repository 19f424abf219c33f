// Package metrics provides lightweight metrics collection for mongopool.
// Metrics are exposed in the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultLatencyBuckets are histogram buckets (seconds) suited to dial latency.
var DefaultLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// desc carries the identity shared by every metric type.
type desc struct {
	name string
	help string
}

func (d desc) header(sb *strings.Builder, kind string) {
	fmt.Fprintf(sb, "# HELP %s %s\n", d.name, d.help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", d.name, kind)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	desc
	value atomic.Uint64
}

// NewCounter creates a counter registered with the default registry.
func NewCounter(name, help string) *Counter {
	c := &Counter{desc: desc{name: name, help: help}}
	defaultRegistry.Register(c)
	return c
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(v uint64) {
	c.value.Add(v)
}

// Value returns the current counter value.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

func (c *Counter) metricName() string { return c.name }

func (c *Counter) write(sb *strings.Builder) {
	c.header(sb, "counter")
	fmt.Fprintf(sb, "%s %d\n", c.name, c.Value())
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	desc
	value atomic.Int64
}

// NewGauge creates a gauge registered with the default registry.
func NewGauge(name, help string) *Gauge {
	g := &Gauge{desc: desc{name: name, help: help}}
	defaultRegistry.Register(g)
	return g
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v int64) {
	g.value.Store(v)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.value.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.value.Add(-1)
}

// Add adds the given value to the gauge.
func (g *Gauge) Add(v int64) {
	g.value.Add(v)
}

// Value returns the current gauge value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

func (g *Gauge) metricName() string { return g.name }

func (g *Gauge) write(sb *strings.Builder) {
	g.header(sb, "gauge")
	fmt.Fprintf(sb, "%s %d\n", g.name, g.Value())
}

// Histogram tracks the distribution of observed values in cumulative buckets.
type Histogram struct {
	desc
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

// NewHistogram creates a histogram registered with the default registry.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	h := newHistogram(name, help, buckets)
	defaultRegistry.Register(h)
	return h
}

func newHistogram(name, help string, buckets []float64) *Histogram {
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	return &Histogram{
		desc:    desc{name: name, help: help},
		buckets: sorted,
		counts:  make([]uint64, len(sorted)),
	}
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
		}
	}
}

// ObserveSince records the seconds elapsed since start.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Histogram) metricName() string { return h.name }

func (h *Histogram) write(sb *strings.Builder) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.header(sb, "histogram")
	for i, b := range h.buckets {
		fmt.Fprintf(sb, "%s_bucket{le=\"%g\"} %d\n", h.name, b, h.counts[i])
	}
	fmt.Fprintf(sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(sb, "%s_sum %g\n", h.name, h.sum)
	fmt.Fprintf(sb, "%s_count %d\n", h.name, h.count)
}

// Metric is implemented by Counter, Gauge and Histogram.
type Metric interface {
	metricName() string
	write(sb *strings.Builder)
}

// Registry holds registered metrics keyed by name.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// defaultRegistry is the global metric registry.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds m to the registry, replacing any metric with the same name.
func (r *Registry) Register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[m.metricName()] = m
}

// Expose returns all metrics in Prometheus exposition format, sorted by name.
func (r *Registry) Expose() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		r.metrics[name].write(&sb)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Handler returns an http.Handler that exposes the default registry.
func Handler() http.Handler {
	return HandlerFor(defaultRegistry)
}

// HandlerFor returns an http.Handler that exposes r.
func HandlerFor(r *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(r.Expose()))
	})
}

// Process metrics
var (
	StartTime = NewGauge("mongopool_start_time_seconds", "Unix timestamp when the process started")
)

// RecordStartTime records the current time as the start time.
func RecordStartTime() {
	StartTime.Set(time.Now().Unix())
}
