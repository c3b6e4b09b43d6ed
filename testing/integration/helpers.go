package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/layerz"
)

// MockCollector wraps a real collector with test utilities.
// Provides synchronous collection and verification helpers.
type MockCollector struct {
	exported []*layerz.Event
	*layerz.Collector
	t  *testing.T
	mu sync.Mutex
}

// NewMockCollector creates a collector for testing.
func NewMockCollector(t *testing.T, name string, bufferSize int) *MockCollector {
	collector := layerz.NewCollector(name, bufferSize)
	collector.SetSyncMode(true) // Enable synchronous collection for testing.
	return &MockCollector{
		Collector: collector,
		t:         t,
	}
}

// NewTestTracer creates a tracer that samples everything into a MockCollector.
func NewTestTracer(t *testing.T, opts ...layerz.Option) (*layerz.Tracer, *MockCollector) {
	t.Helper()
	collector := NewMockCollector(t, "test", 1000)
	t.Cleanup(collector.Close)

	opts = append([]layerz.Option{
		layerz.WithReporter(collector),
		layerz.WithSampler(layerz.AlwaysSampler{}),
		layerz.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	tracer, err := layerz.New(opts...)
	if err != nil {
		t.Fatalf("Failed to create tracer: %v", err)
	}
	return tracer, collector
}

// Export returns collected events and clears the buffer.
func (m *MockCollector) Export() []*layerz.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := m.Collector.Export()
	m.exported = append(m.exported, events...)
	return events
}

// GetAll returns every event exported so far without clearing.
func (m *MockCollector) GetAll() []*layerz.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current := m.Collector.Export(); len(current) > 0 {
		m.exported = append(m.exported, current...)
	}

	all := make([]*layerz.Event, len(m.exported))
	copy(all, m.exported)
	return all
}

// WaitForEvents waits for the expected number of events with timeout.
func (m *MockCollector) WaitForEvents(expected int, timeout time.Duration) []*layerz.Event {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if all := m.GetAll(); len(all) >= expected {
			return all
		}
		<-ticker.C
	}

	all := m.GetAll()
	m.t.Errorf("Timeout waiting for events: expected %d, got %d", expected, len(all))
	return all
}

// AssertEventCount verifies the exact number of events collected so far.
func (m *MockCollector) AssertEventCount(expected int) {
	if got := len(m.GetAll()); got != expected {
		m.t.Errorf("Expected %d events, got %d", expected, got)
	}
}

// EventGraph indexes a set of events by op ID so causal edges can be
// followed.
type EventGraph struct {
	events []*layerz.Event
	byOp   map[layerz.OpID]*layerz.Event
}

// NewEventGraph builds a graph over events.
func NewEventGraph(events []*layerz.Event) *EventGraph {
	g := &EventGraph{
		events: events,
		byOp:   make(map[layerz.OpID]*layerz.Event, len(events)),
	}
	for _, ev := range events {
		g.byOp[ev.Metadata().OpID()] = ev
	}
	return g
}

// Find returns the first event of layer with the given label, or nil.
func (g *EventGraph) Find(layer string, label layerz.Label) *layerz.Event {
	for _, ev := range g.events {
		if ev.Layer() == layer && ev.Label() == label {
			return ev
		}
	}
	return nil
}

// FindAll returns every event of layer with the given label.
func (g *EventGraph) FindAll(layer string, label layerz.Label) []*layerz.Event {
	var out []*layerz.Event
	for _, ev := range g.events {
		if ev.Layer() == layer && ev.Label() == label {
			out = append(out, ev)
		}
	}
	return out
}

// Roots returns events with no edges.
func (g *EventGraph) Roots() []*layerz.Event {
	var roots []*layerz.Event
	for _, ev := range g.events {
		if len(ev.Edges()) == 0 {
			roots = append(roots, ev)
		}
	}
	return roots
}

// Tasks returns the number of distinct task IDs.
func (g *EventGraph) Tasks() int {
	tasks := make(map[layerz.TaskID]struct{})
	for _, ev := range g.events {
		tasks[ev.Metadata().TaskID()] = struct{}{}
	}
	return len(tasks)
}

// Reaches reports whether from is reachable from to by following edges
// backwards, that is whether from happened before to.
func (g *EventGraph) Reaches(from, to *layerz.Event) bool {
	seen := make(map[layerz.OpID]bool)
	stack := []*layerz.Event{to}
	target := from.Metadata().OpID()

	for len(stack) > 0 {
		ev := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, edge := range ev.Edges() {
			op := edge.OpID()
			if op == target {
				return true
			}
			if seen[op] {
				continue
			}
			seen[op] = true
			if prev, ok := g.byOp[op]; ok {
				stack = append(stack, prev)
			}
		}
	}
	return false
}

// VerifyChain checks that each event has exactly one edge, pointing at the
// event before it.
func (*EventGraph) VerifyChain(events ...*layerz.Event) error {
	if len(events) < 2 {
		return fmt.Errorf("chain requires at least 2 events")
	}
	for i := 1; i < len(events); i++ {
		edges := events[i].Edges()
		if len(edges) != 1 || edges[0] != events[i-1].Metadata() {
			return fmt.Errorf("broken chain at %s: edges %v, want %s",
				describe(events[i]), edges, events[i-1].Metadata())
		}
	}
	return nil
}

// Dangling returns edges that point at events outside the graph.
func (g *EventGraph) Dangling() []layerz.Metadata {
	var out []layerz.Metadata
	for _, ev := range g.events {
		for _, edge := range ev.Edges() {
			if _, ok := g.byOp[edge.OpID()]; !ok {
				out = append(out, edge)
			}
		}
	}
	return out
}

// String formats the graph one event per line for debugging.
func (g *EventGraph) String() string {
	var sb strings.Builder
	for _, ev := range g.events {
		fmt.Fprintf(&sb, "%s %s <- %v\n", describe(ev), ev.Metadata().OpID(), ev.Edges())
	}
	return sb.String()
}

func describe(ev *layerz.Event) string {
	layer := ev.Layer()
	if layer == "" {
		layer = "-"
	}
	return layer + ":" + string(ev.Label())
}

// MockService simulates an external service for integration testing.
type MockService struct {
	tracer       *layerz.Tracer
	name         string
	latency      time.Duration
	mu           sync.Mutex
	requestCount int
	failureRate  float32
}

// NewMockService creates a simulated service.
func NewMockService(name string, tracer *layerz.Tracer) *MockService {
	return &MockService{
		name:    name,
		latency: time.Millisecond,
		tracer:  tracer,
	}
}

// SetLatency configures response time.
func (m *MockService) SetLatency(d time.Duration) {
	m.mu.Lock()
	m.latency = d
	m.mu.Unlock()
}

// SetFailureRate configures error probability (0.0-1.0).
func (m *MockService) SetFailureRate(rate float32) {
	m.mu.Lock()
	m.failureRate = rate
	m.mu.Unlock()
}

// Requests returns the number of calls served.
func (m *MockService) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// Handle serves one request carrying an upstream X-Trace token and returns
// the token of the span's exit event, the way an RPC response would.
func (m *MockService) Handle(token, operation string) (string, error) {
	m.mu.Lock()
	m.requestCount++
	count := m.requestCount
	latency := m.latency
	shouldFail := rand.Float32() < m.failureRate
	m.mu.Unlock()

	span, err := m.tracer.StartSpan(context.Background(), token, m.name,
		layerz.String("operation", operation),
		layerz.Int("request_id", count),
	)
	if err != nil {
		return "", err
	}

	err = span.Run(context.Background(), func(ctx context.Context) error {
		time.Sleep(latency)
		if shouldFail {
			return fmt.Errorf("%s: simulated failure", m.name)
		}
		m.tracer.ReportInfo(ctx, layerz.Bool("success", true))
		return nil
	})
	if span.Disabled() {
		return "", err
	}
	return span.ExitEvent().String(), err
}
