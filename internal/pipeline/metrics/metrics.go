package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"phonecheck/internal/evidence"
)

// Metrics covers the lookup pipeline: outcomes, end-to-end latency, cache
// effectiveness and per-provider fetches.
type Metrics struct {
	Lookups          *prometheus.CounterVec
	LookupDuration   prometheus.Histogram
	CacheResults     *prometheus.CounterVec
	ProviderFetches  *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	HistoryWriteErrs prometheus.Counter
}

// New registers the pipeline metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the pipeline metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonecheck_lookups_total",
			Help: "Total number of lookups by outcome and risk label",
		}, []string{"outcome", "risk_label"}),
		LookupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "phonecheck_lookup_duration_seconds",
			Help:    "End-to-end duration of Analyze",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		CacheResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonecheck_history_cache_total",
			Help: "History cache lookups by result (hit, stale, miss, error)",
		}, []string{"result"}),
		ProviderFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "phonecheck_provider_fetches_total",
			Help: "Provider fetches by provider and evidence status",
		}, []string{"provider", "status"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phonecheck_provider_fetch_duration_seconds",
			Help:    "Duration of provider fetches including timeouts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		HistoryWriteErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "phonecheck_history_write_errors_total",
			Help: "History writes that failed and were swallowed",
		}),
	}
}

// ObserveLookup records a finished Analyze call.
func (m *Metrics) ObserveLookup(outcome, label string, start time.Time) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(outcome, label).Inc()
	m.LookupDuration.Observe(time.Since(start).Seconds())
}

// IncrementCacheResult records a history cache probe.
func (m *Metrics) IncrementCacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheResults.WithLabelValues(result).Inc()
}

// IncrementHistoryWriteError records a swallowed history write failure.
func (m *Metrics) IncrementHistoryWriteError() {
	if m == nil {
		return
	}
	m.HistoryWriteErrs.Inc()
}

// ObserveProviderFetch implements providers.FetchObserver.
func (m *Metrics) ObserveProviderFetch(provider string, status evidence.Status, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderFetches.WithLabelValues(provider, string(status)).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}
