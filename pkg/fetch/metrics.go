package fetch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	sifterrors "github.com/sift-dev/sift/internal/errors"
)

// MetricsConfig configures the Prometheus metrics for an orchestrator.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "sift").
	Namespace string

	// Subsystem is the metrics subsystem (default: "fetch").
	Subsystem string

	// ConstLabels are constant labels added to all metrics. Use these to
	// tell orchestrators apart when an app runs more than one.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for fetch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "sift",
		Subsystem:   "fetch",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus instruments for one orchestrator. Unlike a
// process-wide singleton, every orchestrator gets its own instance so tests
// and multi-engine apps can use separate registries.
//
// Metrics collected:
//   - sift_fetch_runs_total: Counter of runs by outcome (success, error, cache_hit)
//   - sift_fetch_duration_seconds: Histogram of collaborator call duration
//   - sift_fetch_prevented_total: Counter of blocked runs by reason
//   - sift_fetch_retries_total: Counter of re-attempts after a failure
//   - sift_fetch_errors_total: Counter of failures by error code
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	preventedTotal *prometheus.CounterVec
	retriesTotal   prometheus.Counter
	errorsTotal    *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them with the configured
// registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "runs_total",
			Help:        "Total number of fetch runs by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "duration_seconds",
			Help:        "Collaborator call duration in seconds, retries included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		preventedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "prevented_total",
			Help:        "Total number of runs blocked before the collaborator was called",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "retries_total",
			Help:        "Total number of re-attempts after a failed collaborator call",
			ConstLabels: config.ConstLabels,
		}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of failed runs by error code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),
	}
}

// All recording methods are nil-safe so the orchestrator can call them
// unconditionally; metrics are off unless Meter was used.

func (m *Metrics) recordRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.fetchDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) recordPrevented(reason string) {
	if m == nil {
		return
	}
	m.preventedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordRetries(reattempts int) {
	if m == nil || reattempts <= 0 {
		return
	}
	m.retriesTotal.Add(float64(reattempts))
}

func (m *Metrics) recordError(err error) {
	if m == nil {
		return
	}
	code := sifterrors.CodeOf(err)
	if code == "" {
		code = "internal"
	}
	m.errorsTotal.WithLabelValues(code).Inc()
}
