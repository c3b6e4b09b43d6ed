package layerz

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordsTracerActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tracer, _ := newTestTracer(t, WithMetrics(metrics))

	span, _ := tracer.NewSpan(context.Background(), "work")
	_ = span.Run(context.Background(), func(ctx context.Context) error {
		if got := testutil.ToFloat64(metrics.activeSpans); got != 1 {
			t.Errorf("active spans inside body = %v", got)
		}
		tracer.ReportInfo(ctx)
		return nil
	})

	if got := testutil.ToFloat64(metrics.eventsSent.WithLabelValues("entry")); got != 1 {
		t.Errorf("entry events = %v", got)
	}
	if got := testutil.ToFloat64(metrics.eventsSent.WithLabelValues("info")); got != 1 {
		t.Errorf("info events = %v", got)
	}
	if got := testutil.ToFloat64(metrics.eventsSent.WithLabelValues("exit")); got != 1 {
		t.Errorf("exit events = %v", got)
	}
	if got := testutil.ToFloat64(metrics.sampleDecisions.WithLabelValues("sampled", "2")); got != 1 {
		t.Errorf("sampled decisions = %v", got)
	}
	if got := testutil.ToFloat64(metrics.activeSpans); got != 0 {
		t.Errorf("active spans after exit = %v", got)
	}
	if got := testutil.CollectAndCount(metrics.sendDuration); got != 1 {
		t.Errorf("send duration series = %d", got)
	}
}

func TestMetricsCountsUnsampledDrops(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tracer, _ := newTestTracer(t, WithMetrics(metrics), WithSampler(NeverSampler{}))

	span, _ := tracer.NewSpan(context.Background(), "work")
	_ = span.Run(context.Background(), func(context.Context) error { return nil })

	if got := testutil.ToFloat64(metrics.eventsDropped.WithLabelValues(DropUnsampled)); got != 2 {
		t.Errorf("unsampled drops = %v", got)
	}
	if got := testutil.ToFloat64(metrics.sampleDecisions.WithLabelValues("unsampled", "2")); got != 1 {
		t.Errorf("unsampled decisions = %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSent(LabelEntry, 0)
	m.RecordDropped(DropQueueFull)
	m.RecordReporterFailure()
	m.RecordDecision(Decision{})
	m.SpanEntered()
	m.SpanExited()
}

func TestMetricsRegisterOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordDropped(DropQueueFull)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "layerz_events_dropped_total" {
			found = true
		}
	}
	if !found {
		t.Error("dropped counter not registered")
	}
}
