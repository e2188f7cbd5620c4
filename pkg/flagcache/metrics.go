package flagcache

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

// Metrics receives cache events. Implementations must be safe for concurrent use.
type Metrics interface {
	// Lookup records where a Get was answered: tier is TierL1, TierL2 or
	// TierRepository, and result is one of "hit", "negative", "stale" or "error".
	Lookup(tier Tier, result string)
	// Fetch records one repository call.
	Fetch(d time.Duration, err error)
	// Invalidation records an eviction; source is "local", "peer" or "refresh".
	Invalidation(source string, all bool)
	// Eviction records an L1 entry dropped for capacity.
	Eviction()
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Lookup(Tier, string)        {}
func (NoopMetrics) Fetch(time.Duration, error) {}
func (NoopMetrics) Invalidation(string, bool)  {}
func (NoopMetrics) Eviction()                  {}

const (
	namespace = "feature_flags"
	subsystem = "cache"
)

// PrometheusMetrics exports cache events as Prometheus collectors.
type PrometheusMetrics struct {
	lookups       *prometheus.CounterVec // label tier, result
	fetches       *prometheus.CounterVec // label status = {"ok", "not_found", "error"}
	fetchDuration prometheus.Histogram
	invalidations *prometheus.CounterVec // label source, scope = {"key", "all"}
	evictions     prometheus.Counter
}

// NewPrometheusMetrics creates the collectors and registers them with reg when reg is not nil.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lookups_total",
			Help:      "Flag lookups by answering tier and result.",
		}, []string{"tier", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "repository_fetches_total",
			Help:      "Repository calls by status.",
		}, []string{"status"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "repository_fetch_duration_seconds",
			Help:      "Latency of repository calls.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invalidations_total",
			Help:      "Cache invalidations by source and scope.",
		}, []string{"source", "scope"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "l1_evictions_total",
			Help:      "In-process entries dropped for capacity.",
		}),
	}

	if reg != nil {
		for _, c := range m.Collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Collectors returns all collectors, for callers that register them elsewhere.
func (m *PrometheusMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.lookups, m.fetches, m.fetchDuration, m.invalidations, m.evictions}
}

func (m *PrometheusMetrics) Lookup(tier Tier, result string) {
	m.lookups.WithLabelValues(string(tier), result).Inc()
}

func (m *PrometheusMetrics) Fetch(d time.Duration, err error) {
	m.fetchDuration.Observe(d.Seconds())
	m.fetches.WithLabelValues(fetchStatus(err)).Inc()
}

func (m *PrometheusMetrics) Invalidation(source string, all bool) {
	scope := "key"
	if all {
		scope = "all"
	}
	m.invalidations.WithLabelValues(source, scope).Inc()
}

func (m *PrometheusMetrics) Eviction() {
	m.evictions.Inc()
}

func fetchStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, feature.ErrFlagNotFound):
		return "not_found"
	default:
		return "error"
	}
}
