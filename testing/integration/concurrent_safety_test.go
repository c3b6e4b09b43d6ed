package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/zoobzio/layerz"
)

// TestConcurrentTracesStayIsolated runs many traces in parallel and checks
// that no edge ever crosses from one trace into another.
func TestConcurrentTracesStayIsolated(t *testing.T) {
	tracer, collector := NewTestTracer(t)

	var wg sync.WaitGroup
	numGoroutines := 20
	tracesPerGoroutine := 50

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < tracesPerGoroutine; j++ {
				_ = tracer.StartOrContinue(context.Background(), "", "parent", func(ctx context.Context) error {
					return tracer.Instrument(ctx, "child", func(ctx context.Context) error {
						tracer.ReportInfo(ctx, layerz.Int("iteration", j))
						return nil
					})
				})
			}
		}()
	}
	wg.Wait()

	events := collector.GetAll()
	traces := numGoroutines * tracesPerGoroutine
	if len(events) != traces*5 {
		t.Fatalf("Expected %d events, got %d", traces*5, len(events))
	}

	graph := NewEventGraph(events)
	if graph.Tasks() != traces {
		t.Errorf("Expected %d tasks, got %d", traces, graph.Tasks())
	}
	if len(graph.Roots()) != traces {
		t.Errorf("Expected %d roots, got %d", traces, len(graph.Roots()))
	}
	if dangling := graph.Dangling(); len(dangling) != 0 {
		t.Errorf("Found %d edges to unknown events", len(dangling))
	}

	for _, ev := range events {
		for _, edge := range ev.Edges() {
			if edge.TaskID() != ev.Metadata().TaskID() {
				t.Fatalf("Edge crosses tasks at %s", describe(ev))
			}
		}
	}
}

// TestConcurrentReconfiguration changes the sample rate while traces run.
func TestConcurrentReconfiguration(t *testing.T) {
	tracer, collector := NewTestTracer(t, layerz.WithSampler(layerz.NewRateSampler()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			rate := layerz.MaxSampleRate
			if i%2 == 0 {
				rate = 0
			}
			if err := tracer.SetSampleRate(rate); err != nil {
				t.Errorf("SetSampleRate: %v", err)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tracer.Instrument(context.Background(), "untraced", func(context.Context) error { return nil })
				_ = tracer.StartOrContinue(context.Background(), "", "op", func(context.Context) error { return nil })
			}
		}()
	}
	wg.Wait()
	<-done

	// Every recorded trace is complete: an entry for each exit.
	events := collector.GetAll()
	graph := NewEventGraph(events)
	entries := graph.FindAll("op", layerz.LabelEntry)
	exits := graph.FindAll("op", layerz.LabelExit)
	if len(entries) != len(exits) {
		t.Errorf("Unbalanced trace: %d entries, %d exits", len(entries), len(exits))
	}
	if len(graph.FindAll("untraced", layerz.LabelEntry)) != 0 {
		t.Error("Instrument outside a trace must not report")
	}
}
