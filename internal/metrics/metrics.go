// Package metrics exposes the custody pipeline's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeViolation = "integrity_violation"
)

type Metrics struct {
	produced   *prometheus.CounterVec
	retrieved  *prometheus.CounterVec
	violations prometheus.Counter
	stage      *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg yields unregistered
// collectors, which still count.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		produced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_produce_total",
			Help: "Produce calls by document kind and outcome.",
		}, []string{"kind", "outcome"}),
		retrieved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_retrieve_total",
			Help: "Retrieve calls by outcome.",
		}, []string{"outcome"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "custody_integrity_violations_total",
			Help: "Integrity violations detected on retrieve.",
		}),
		stage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custody_stage_seconds",
			Help:    "Time spent per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.produced, m.retrieved, m.violations, m.stage)
	}
	return m
}

func (m *Metrics) Produced(kind, outcome string) {
	if m == nil {
		return
	}
	m.produced.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Retrieved(outcome string) {
	if m == nil {
		return
	}
	m.retrieved.WithLabelValues(outcome).Inc()
	if outcome == OutcomeViolation {
		m.violations.Inc()
	}
}

// Stage returns a func that records the elapsed time for stage when called.
func (m *Metrics) Stage(stage string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.stage.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
