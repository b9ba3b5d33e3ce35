package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cyclone_tracker"

// Metrics holds the Prometheus collectors for fetching and detection.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchAttempts *prometheus.CounterVec // labels: endpoint, outcome
	FetchRetries  *prometheus.CounterVec // labels: endpoint
	FetchDuration *prometheus.HistogramVec
	BreakerState  *prometheus.GaugeVec // labels: breaker; 0 closed, 1 half-open, 2 open

	Detections    *prometheus.CounterVec // labels: category
	SeverityScore prometheus.Histogram
	WatchRuns     *prometheus.CounterVec // labels: outcome
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered by a previous call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := newMetrics()

	var err error
	m.FetchAttempts, err = register(reg, m.FetchAttempts)
	if err != nil {
		return nil, err
	}
	m.FetchRetries, err = register(reg, m.FetchRetries)
	if err != nil {
		return nil, err
	}
	m.FetchDuration, err = register(reg, m.FetchDuration)
	if err != nil {
		return nil, err
	}
	m.BreakerState, err = register(reg, m.BreakerState)
	if err != nil {
		return nil, err
	}
	m.Detections, err = register(reg, m.Detections)
	if err != nil {
		return nil, err
	}
	m.SeverityScore, err = register(reg, m.SeverityScore)
	if err != nil {
		return nil, err
	}
	m.WatchRuns, err = register(reg, m.WatchRuns)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsForTesting returns Metrics bound to a fresh registry.
func NewMetricsForTesting() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		panic(err)
	}
	return m, reg
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Upstream fetch attempts by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Retries scheduled after a retryable failure.",
		}, []string{"endpoint"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_attempt_duration_seconds",
			Help:      "Duration of a single upstream attempt.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"breaker"}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Completed detections by category.",
		}, []string{"category"}),
		SeverityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "severity_score",
			Help:      "Distribution of computed severity scores.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		WatchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_runs_total",
			Help:      "Scheduled watch analyses by outcome.",
		}, []string{"outcome"}),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveFetch records one attempt against endpoint.
func (m *Metrics) ObserveFetch(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(endpoint, outcome).Inc()
	m.FetchDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) ObserveRetry(endpoint string) {
	if m == nil {
		return
	}
	m.FetchRetries.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(state)
}

// ObserveDetection records the category and score of a finished detection.
func (m *Metrics) ObserveDetection(category string, score float64) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(category).Inc()
	m.SeverityScore.Observe(score)
}

func (m *Metrics) ObserveWatchRun(outcome string) {
	if m == nil {
		return
	}
	m.WatchRuns.WithLabelValues(outcome).Inc()
}
