// Package observability defines the Prometheus metrics exported by the bot.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aqibot"

// Metrics holds counters and histograms shared by the bot components.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Updates     *prometheus.CounterVec   // labels: kind={message,command,location,other}
	Transitions *prometheus.CounterVec   // labels: from, to
	Fetches     *prometheus.CounterVec   // labels: method={city,nearest}, outcome={success,api_error,error}
	FetchTime   *prometheus.HistogramVec // labels: method
	AuditEvents *prometheus.CounterVec   // labels: result={written,dropped,failed}
}

func build() *Metrics {
	return &Metrics{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound Telegram updates by kind.",
		}, []string{"kind"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_transitions_total",
			Help:      "Conversation state transitions.",
		}, []string{"from", "to"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "airvisual_requests_total",
			Help:      "IQAir API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		FetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "airvisual_request_duration_seconds",
			Help:      "IQAir API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		AuditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Usage audit events by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates the metrics and registers them with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := build()
	prometheus.MustRegister(m.Updates, m.Transitions, m.Fetches, m.FetchTime, m.AuditEvents)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build many instances.
func NewMetricsForTesting() *Metrics {
	return build()
}

// Update counts an inbound update.
func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.Updates.WithLabelValues(kind).Inc()
}

// Transition counts a state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// Fetch records an upstream request.
func (m *Metrics) Fetch(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(method, outcome).Inc()
	m.FetchTime.WithLabelValues(method).Observe(seconds)
}

// Audit counts an audit event result.
func (m *Metrics) Audit(result string) {
	if m == nil {
		return
	}
	m.AuditEvents.WithLabelValues(result).Inc()
}
