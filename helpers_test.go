package layerz

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

var testEpoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// newTestTracer returns a tracer reporting synchronously into a collector.
func newTestTracer(t *testing.T, opts ...Option) (*Tracer, *Collector) {
	t.Helper()

	collector := NewCollector("test", 100)
	collector.SetSyncMode(true)
	t.Cleanup(collector.Close)

	base := []Option{
		WithReporter(collector),
		WithSampler(AlwaysSampler{}),
		WithClock(clockz.NewFakeClockAt(testEpoch)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	tracer, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tracer, collector
}

// edgeOps returns the op IDs an event links to.
func edgeOps(ev *Event) []OpID {
	edges := ev.Edges()
	ops := make([]OpID, len(edges))
	for i, e := range edges {
		ops[i] = e.OpID()
	}
	return ops
}

// assertSingleEdge fails unless ev has exactly one edge, to want.
func assertSingleEdge(t *testing.T, ev *Event, want *Event) {
	t.Helper()
	edges := ev.Edges()
	if len(edges) != 1 {
		t.Fatalf("%s %s: expected 1 edge, got %d", ev.Layer(), ev.Label(), len(edges))
	}
	if edges[0] != want.Metadata() {
		t.Errorf("%s %s: edge = %s, want %s (%s %s)",
			ev.Layer(), ev.Label(), edges[0].OpID(), want.Metadata().OpID(), want.Layer(), want.Label())
	}
}

func labels(events []*Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		name := ev.Layer()
		if name == "" {
			name = "-"
		}
		out[i] = name + ":" + string(ev.Label())
	}
	return out
}
