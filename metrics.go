package layerz

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons reported by Metrics.
const (
	DropUnsampled = "unsampled"
	DropQueueFull = "queue_full"
)

// Metrics contains Prometheus metrics for a tracer.
// A nil *Metrics records nothing.
type Metrics struct {
	eventsSent       *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	reporterFailures prometheus.Counter
	sampleDecisions  *prometheus.CounterVec
	activeSpans      prometheus.Gauge
	sendDuration     prometheus.Histogram
}

// NewMetrics creates the tracer metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		eventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layerz_events_sent_total",
				Help: "Total number of events handed to the reporter",
			},
			[]string{"label"},
		),

		eventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layerz_events_dropped_total",
				Help: "Total number of events not reported",
			},
			[]string{"reason"},
		),

		reporterFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "layerz_reporter_failures_total",
				Help: "Total number of reporter errors and panics",
			},
		),

		sampleDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layerz_sample_decisions_total",
				Help: "Total number of sampling decisions for root spans",
			},
			[]string{"decision", "source"},
		),

		activeSpans: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "layerz_active_spans",
				Help: "Number of spans entered and not yet exited",
			},
		),

		sendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "layerz_reporter_send_duration_seconds",
				Help:    "Duration of reporter Send calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
	}
}

// RecordSent records an event handed to the reporter.
func (m *Metrics) RecordSent(label Label, d time.Duration) {
	if m == nil {
		return
	}
	m.eventsSent.WithLabelValues(string(label)).Inc()
	m.sendDuration.Observe(d.Seconds())
}

// RecordDropped records an event that was not reported.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordReporterFailure records a reporter error or panic.
func (m *Metrics) RecordReporterFailure() {
	if m == nil {
		return
	}
	m.reporterFailures.Inc()
}

// RecordDecision records a root sampling decision.
func (m *Metrics) RecordDecision(d Decision) {
	if m == nil {
		return
	}
	decision := "unsampled"
	if d.Sample {
		decision = "sampled"
	}
	m.sampleDecisions.WithLabelValues(decision, strconv.Itoa(int(d.Source))).Inc()
}

// SpanEntered increments the active span gauge.
func (m *Metrics) SpanEntered() {
	if m == nil {
		return
	}
	m.activeSpans.Inc()
}

// SpanExited decrements the active span gauge.
func (m *Metrics) SpanExited() {
	if m == nil {
		return
	}
	m.activeSpans.Dec()
}
