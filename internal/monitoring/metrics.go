package monitoring

import (
	"bytes"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Load results recorded by RecordLoad.
const (
	LoadHit   = "hit"
	LoadMiss  = "miss"
	LoadError = "error"
)

// Metrics holds all Prometheus metrics of one guest instance.
type Metrics struct {
	registry *prometheus.Registry

	// Loader metrics
	LoadsTotal        *prometheus.CounterVec
	TransformDuration *prometheus.HistogramVec
	CompileDuration   prometheus.Histogram

	// Boundary metrics
	BoundaryCalls    *prometheus.CounterVec
	BoundaryDuration *prometheus.HistogramVec
	HandlesLive      *prometheus.GaugeVec

	// Reactor metrics
	ReactorTasks  prometheus.Counter
	ReactorTimers prometheus.Counter

	// Script console
	ConsoleMessages *prometheus.CounterVec

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds running totals that are cheap to read without gathering.
type Snapshot struct {
	Loads         int64
	CacheHits     int64
	BoundaryCalls int64
	Failures      int64
}

// NewMetrics creates a collector on its own registry so several guests in
// one process never collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestjs_module_loads_total",
				Help: "Total number of module loads by result",
			},
			[]string{"result"},
		),
		TransformDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guestjs_transform_duration_seconds",
				Help:    "Source transform duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"transform"},
		),
		CompileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "guestjs_compile_duration_seconds",
				Help:    "Engine compile duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),

		BoundaryCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestjs_boundary_calls_total",
				Help: "Total number of host boundary calls",
			},
			[]string{"op", "status"},
		),
		BoundaryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guestjs_boundary_call_duration_seconds",
				Help:    "Host boundary call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op"},
		),
		HandlesLive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guestjs_handles_live",
				Help: "Number of live handles by kind",
			},
			[]string{"kind"},
		),

		ReactorTasks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "guestjs_reactor_tasks_total",
				Help: "Total number of tasks run by reactors",
			},
		),
		ReactorTimers: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "guestjs_reactor_timers_fired_total",
				Help: "Total number of timer callbacks fired",
			},
		),

		ConsoleMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestjs_console_messages_total",
				Help: "Total number of console messages emitted by scripts",
			},
			[]string{"level"},
		),
	}
}

// Registry returns the private registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordLoad records a module load outcome.
func (m *Metrics) RecordLoad(result string) {
	m.LoadsTotal.WithLabelValues(result).Inc()

	m.mu.Lock()
	m.snapshot.Loads++
	if result == LoadHit {
		m.snapshot.CacheHits++
	}
	m.mu.Unlock()
}

// ObserveTransform records how long a transform ran.
func (m *Metrics) ObserveTransform(name string, d time.Duration) {
	m.TransformDuration.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveCompile records how long an engine compile ran.
func (m *Metrics) ObserveCompile(d time.Duration) {
	m.CompileDuration.Observe(d.Seconds())
}

// RecordBoundaryCall records one exported call and its status name.
func (m *Metrics) RecordBoundaryCall(op, status string, d time.Duration) {
	m.BoundaryCalls.WithLabelValues(op, status).Inc()
	m.BoundaryDuration.WithLabelValues(op).Observe(d.Seconds())

	m.mu.Lock()
	m.snapshot.BoundaryCalls++
	if status != "ok" {
		m.snapshot.Failures++
	}
	m.mu.Unlock()
}

// SetHandles sets the live handle count for kind.
func (m *Metrics) SetHandles(kind string, n int) {
	m.HandlesLive.WithLabelValues(kind).Set(float64(n))
}

// IncReactorTasks counts one executed reactor task.
func (m *Metrics) IncReactorTasks() {
	m.ReactorTasks.Inc()
}

// IncReactorTimers counts one fired timer.
func (m *Metrics) IncReactorTimers() {
	m.ReactorTimers.Inc()
}

// RecordConsole counts one console message.
func (m *Metrics) RecordConsole(level string) {
	m.ConsoleMessages.WithLabelValues(level).Inc()
}

// Snapshot returns the running totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Text gathers every metric in the Prometheus text exposition format.
func (m *Metrics) Text() ([]byte, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
