// Package metrics exposes Prometheus instrumentation for the turn pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// TurnMetrics counts what happened to each processed message turn.
type TurnMetrics struct {
	turnsTotal      *prometheus.CounterVec
	repliesTotal    *prometheus.CounterVec
	suppressedTotal *prometheus.CounterVec
	commitsTotal    *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
}

// NewTurnMetrics registers the turn metrics on reg (the default registerer
// when nil).
func NewTurnMetrics(reg prometheus.Registerer) *TurnMetrics {
	m := &TurnMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alexis",
			Subsystem: "engine",
			Name:      "turns_total",
			Help:      "Processed message turns by outcome path",
		}, []string{"path"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alexis",
			Subsystem: "engine",
			Name:      "replies_total",
			Help:      "Replies sent, by source (fsm, responder, llm, fallback)",
		}, []string{"source"}),
		suppressedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alexis",
			Subsystem: "engine",
			Name:      "suppressed_total",
			Help:      "Turns that produced no outbound message, by reason",
		}, []string{"reason"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alexis",
			Subsystem: "engine",
			Name:      "booking_commits_total",
			Help:      "Booking commit attempts by result",
		}, []string{"result"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "alexis",
			Subsystem: "engine",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of a turn after debounce release",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.repliesTotal, m.suppressedTotal, m.commitsTotal, m.turnLatency)
	return m
}

// ObserveTurn records one completed turn on the given routing path.
func (m *TurnMetrics) ObserveTurn(path string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(path).Inc()
	m.turnLatency.WithLabelValues(path).Observe(seconds)
}

// ObserveReply records one outbound reply by its source.
func (m *TurnMetrics) ObserveReply(source string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(source).Inc()
}

// ObserveSuppressed records a turn that stayed silent.
func (m *TurnMetrics) ObserveSuppressed(reason string) {
	if m == nil {
		return
	}
	m.suppressedTotal.WithLabelValues(reason).Inc()
}

// ObserveCommit records a booking commit attempt.
func (m *TurnMetrics) ObserveCommit(result string) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(result).Inc()
}
