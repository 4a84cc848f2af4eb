package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	inFlight        prometheus.Gauge
	phaseDuration   *prometheus.HistogramVec
	interpretations *prometheus.CounterVec
	persistErrors   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "orchestrator",
				Name:      "submissions_total",
				Help:      "Total number of bridge submissions",
			},
			[]string{"source_chain", "token", "result"}, // accepted, rejected
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "orchestrator",
				Name:      "transitions_total",
				Help:      "Total number of status transitions",
			},
			[]string{"status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "bridge",
				Subsystem: "orchestrator",
				Name:      "in_flight",
				Help:      "Transactions not yet in a terminal state",
			},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "bridge",
				Subsystem: "orchestrator",
				Name:      "phase_duration_seconds",
				Help:      "Time spent waiting for each bridge phase",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"phase", "result"},
		),
		interpretations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "interpreter",
				Name:      "interpretations_total",
				Help:      "Interpretations by tier and outcome",
			},
			[]string{"source", "result"},
		),
		persistErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "txlog",
				Name:      "persist_errors_total",
				Help:      "Transaction log writes that failed after retries",
			},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submissions,
		m.transitions,
		m.inFlight,
		m.phaseDuration,
		m.interpretations,
		m.persistErrors,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Unvalidated labels a rejected submission whose chain or token never passed
// registry validation, so caller input never becomes a label value.
const Unvalidated = "invalid"

// The recorders below are nil-safe so callers can run without metrics.

func (m *Metrics) Submission(sourceChain, token string, accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
		m.inFlight.Inc()
	}
	m.submissions.WithLabelValues(sourceChain, token, result).Inc()
}

func (m *Metrics) Transition(status string, terminal bool) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
	if terminal {
		m.inFlight.Dec()
	}
}

func (m *Metrics) Phase(phase string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.phaseDuration.WithLabelValues(phase, result).Observe(elapsed.Seconds())
}

func (m *Metrics) Interpretation(source, result string) {
	if m == nil {
		return
	}
	m.interpretations.WithLabelValues(source, result).Inc()
}

func (m *Metrics) PersistError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}
