package layerz

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
)

func TestCurrentWithoutScope(t *testing.T) {
	ctx := context.Background()
	if Current(ctx).IsValid() {
		t.Error("background context should have no position")
	}
	if TraceID(ctx) != "" {
		t.Error("TraceID should be empty when not tracing")
	}
	if Tracing(ctx) {
		t.Error("Tracing should be false")
	}
	if LastSpan(ctx) != nil {
		t.Error("LastSpan should be nil")
	}
}

func TestContinueContext(t *testing.T) {
	md := NewMetadata(true)
	ctx, err := ContinueContext(context.Background(), md.String())
	if err != nil {
		t.Fatalf("ContinueContext: %v", err)
	}
	if Current(ctx) != md {
		t.Error("context should be positioned at the token")
	}
	if TraceID(ctx) != md.String() {
		t.Errorf("TraceID = %q, want %q", TraceID(ctx), md.String())
	}

	orig := context.Background()
	got, err := ContinueContext(orig, "bogus")
	if !errors.Is(err, ErrMalformedIdentifier) {
		t.Errorf("expected ErrMalformedIdentifier, got %v", err)
	}
	if got != orig {
		t.Error("malformed token must return ctx unchanged")
	}

	zero, err := ContinueContext(orig, "2B"+strings.Repeat("0", 58))
	if err != nil {
		t.Fatalf("zero token: %v", err)
	}
	if Tracing(zero) {
		t.Error("zero token must not start tracing")
	}
}

func TestWithScopeIsolation(t *testing.T) {
	start := NewMetadata(true)
	parent, _ := ContinueContext(context.Background(), start.String())

	child := WithScope(parent)
	if Current(child) != start {
		t.Fatal("child scope should start at the parent's position")
	}

	moved := NewMetadata(true)
	scopeFrom(child).advance(moved)

	if Current(child) != moved {
		t.Error("child scope should advance")
	}
	if Current(parent) != start {
		t.Error("child changes leaked into the parent scope")
	}

	sibling := WithScope(parent)
	if Current(sibling) != start {
		t.Error("child changes leaked into a sibling scope")
	}
}

func TestBindResumesCapturedContext(t *testing.T) {
	md := NewMetadata(true)
	ctx, _ := ContinueContext(context.Background(), md.String())

	var seen Metadata
	cb := Bind(ctx, func(ctx context.Context) {
		seen = Current(ctx)
	})

	// Another task moves on before the callback fires.
	other := WithScope(ctx)
	scopeFrom(other).advance(NewMetadata(true))

	cb()
	if seen != md {
		t.Error("bound callback did not resume in the captured task")
	}

	Bind(ctx, nil)()
}

func TestGoRunsInFreshScope(t *testing.T) {
	md := NewMetadata(true)
	ctx, _ := ContinueContext(context.Background(), md.String())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			if Current(ctx) != md {
				t.Error("goroutine should start at the parent's position")
			}
			scopeFrom(ctx).advance(NewMetadata(true))
		})
	}
	wg.Wait()

	if Current(ctx) != md {
		t.Error("goroutines leaked positions into the parent")
	}
}

func TestLastSpanIsWeak(t *testing.T) {
	tracer, _ := newTestTracer(t)

	ctx, _ := ContinueContext(context.Background(), NewMetadata(true).String())
	sc := scopeFrom(ctx)

	func() {
		span, err := tracer.NewSpan(ctx, "short-lived")
		if err != nil {
			t.Fatalf("NewSpan: %v", err)
		}
		if _, err := span.Enter(ctx); err != nil {
			t.Fatalf("Enter: %v", err)
		}
		if sc.lastSpan() != span {
			t.Fatal("entered span should be recorded as last")
		}
		_ = span.Exit()
	}()

	for i := 0; i < 5 && sc.lastSpan() != nil; i++ {
		runtime.GC()
	}
	if sc.lastSpan() != nil {
		t.Error("last span reference kept the span alive")
	}
}

func TestNilScopeIsSafe(t *testing.T) {
	var sc *scope
	if sc.position().IsValid() {
		t.Error("nil scope position should be invalid")
	}
	if sc.lastSpan() != nil {
		t.Error("nil scope last span should be nil")
	}
	if sc.fork() == nil {
		t.Error("fork of nil scope should return a fresh scope")
	}
}
