package layerz

import (
	"context"
	"sync"
	"weak"
)

// scopeKeyType is a private type for context keys to avoid collisions.
type scopeKeyType string

const (
	scopeKey scopeKeyType = "layerz"
)

// scope is the execution context of one logical task: the position new
// events attach to and the span entered last. A scope is shared by the
// synchronous calls and callbacks of one task and copied, never shared, when
// a new task is bound.
type scope struct {
	mu      sync.Mutex
	current Metadata
	last    weak.Pointer[Span]
}

func newScope(current Metadata) *scope {
	return &scope{current: current}
}

// fork returns an isolated copy. Changes to the copy never reach s.
func (s *scope) fork() *scope {
	if s == nil {
		return &scope{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &scope{current: s.current, last: s.last}
}

func (s *scope) position() Metadata {
	if s == nil {
		return Metadata{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *scope) advance(md Metadata) {
	s.mu.Lock()
	s.current = md
	s.mu.Unlock()
}

func (s *scope) enter(span *Span, md Metadata) {
	s.mu.Lock()
	s.current = md
	s.last = weak.Make(span)
	s.mu.Unlock()
}

func (s *scope) lastSpan() *Span {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Value()
}

func scopeFrom(ctx context.Context) *scope {
	if ctx == nil {
		return nil
	}
	if sc, ok := ctx.Value(scopeKey).(*scope); ok {
		return sc
	}
	return nil
}

func withScope(ctx context.Context, sc *scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey, sc)
}

// WithScope binds a fresh logical task to the returned context. The new task
// starts at the parent's position, and nothing done inside it is visible to
// the parent or to sibling tasks.
func WithScope(ctx context.Context) context.Context {
	return withScope(ctx, scopeFrom(ctx).fork())
}

// ContinueContext binds a fresh logical task positioned at the given X-Trace
// token. A malformed token returns the error and ctx unchanged.
func ContinueContext(ctx context.Context, token string) (context.Context, error) {
	md, err := ParseMetadata(token)
	if err != nil {
		return ctx, err
	}
	return withScope(ctx, newScope(md)), nil
}

// Bind returns a callback that resumes fn in the captured logical task.
func Bind(ctx context.Context, fn func(ctx context.Context)) func() {
	if fn == nil {
		return func() {}
	}
	return func() {
		fn(ctx)
	}
}

// Go runs fn on a new goroutine inside a freshly bound logical task.
func Go(ctx context.Context, fn func(ctx context.Context)) {
	child := WithScope(ctx)
	go fn(child)
}

// Current returns the position new events in ctx attach to.
// The zero Metadata is returned when ctx is not tracing.
func Current(ctx context.Context) Metadata {
	return scopeFrom(ctx).position()
}

// LastSpan returns the span entered last in ctx's logical task, or nil.
func LastSpan(ctx context.Context) *Span {
	return scopeFrom(ctx).lastSpan()
}

// TraceID returns the current X-Trace token, or "" when ctx is not tracing.
func TraceID(ctx context.Context) string {
	md := Current(ctx)
	if !md.IsValid() {
		return ""
	}
	return md.String()
}

// Tracing reports whether ctx has a valid current position.
func Tracing(ctx context.Context) bool {
	return Current(ctx).IsValid()
}
