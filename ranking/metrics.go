package ranking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for one run.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ItemsFetchedTotal prometheus.Counter
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	ChangesTotal      *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankwatch_requests_total",
			Help: "Total HTTP requests issued against the ranking API.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rankwatch_request_duration_seconds",
			Help:    "Ranking API request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsFetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rankwatch_items_fetched_total",
			Help: "Total ranked items accepted into the snapshot.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rankwatch_retries_total",
			Help: "Total page retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankwatch_errors_total",
			Help: "Total fetch errors by type.",
		},
		[]string{"error_type"},
	)
	changes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankwatch_changes_total",
			Help: "Ranking changes detected in the last run, by classification.",
		},
		[]string{"classification"},
	)

	registry.MustRegister(requests, requestDuration, itemsFetched, retries, errorsTotal, changes)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ItemsFetchedTotal: itemsFetched,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		ChangesTotal:      changes,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddItems adds accepted items to the fetched counter.
func (m *Metrics) AddItems(n int) {
	if m == nil {
		return
	}
	m.ItemsFetchedTotal.Add(float64(n))
}

// AddRetries adds attempted retries to the retry counter.
func (m *Metrics) AddRetries(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RetriesTotal.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddChanges records detected changes for a classification label.
func (m *Metrics) AddChanges(classification string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ChangesTotal.WithLabelValues(classification).Add(float64(n))
}
