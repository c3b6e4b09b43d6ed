package layerz

import (
	"context"
	"fmt"
	"sync"
)

type spanState int

const (
	spanConstructed spanState = iota
	spanEntered
	spanExited
)

// Span is a named unit of work with paired entry and exit events.
// A span is used exactly once: constructed, entered, exited.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for readability over memory
type Span struct {
	tracer    *Tracer
	entry     *Event
	exit      *Event
	parent    *Span
	scope     *scope
	name      string
	mu        sync.Mutex
	state     spanState
	async     bool
	descended bool
	disabled  bool
}

// newSpan builds the entry/exit pair. The exit event continues the entry's
// identity and is pre-linked to it until the span exits.
func newSpan(t *Tracer, name string, entry *Event, parent *Span, descended bool) *Span {
	exit := newLinkedEvent(name, LabelExit, entry.Metadata())
	exit.implicit = true

	return &Span{
		tracer:    t,
		name:      name,
		entry:     entry,
		exit:      exit,
		parent:    parent,
		descended: descended,
	}
}

// disabledSpan runs bodies untouched and sends nothing.
func disabledSpan(t *Tracer, name string) *Span {
	return &Span{tracer: t, name: name, disabled: true}
}

// Name returns the span (layer) name.
func (s *Span) Name() string {
	return s.name
}

// Entry returns the entry event, nil for a disabled span.
func (s *Span) Entry() *Event {
	return s.entry
}

// ExitEvent returns the exit event, nil for a disabled span.
func (s *Span) ExitEvent() *Event {
	return s.exit
}

// Parent returns the span this one descended from, if known.
func (s *Span) Parent() *Span {
	return s.parent
}

// Descended reports whether the span continues another span's path rather
// than starting its own logical task.
func (s *Span) Descended() bool {
	return s.descended
}

// Async reports whether the span runs an asynchronous body.
func (s *Span) Async() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.async
}

// Disabled reports whether the span passes bodies through without tracing.
func (s *Span) Disabled() bool {
	return s.disabled
}

// Current returns the last position on the span's path: the most recent
// event sent in its logical task, or the entry identity before Enter.
func (s *Span) Current() Metadata {
	if s.disabled {
		return Metadata{}
	}
	s.mu.Lock()
	sc := s.scope
	s.mu.Unlock()

	if md := sc.position(); md.IsValid() {
		return md
	}
	return s.entry.Metadata()
}

// SetAsync marks the span as running an asynchronous body. It sets the Async
// entry field when true and removes it when false.
// Only valid before Enter.
func (s *Span) SetAsync(async bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != spanConstructed {
		return s.outOfOrder("set async on")
	}
	s.async = async
	if s.disabled {
		return nil
	}
	if async {
		s.entry.Set(Bool(KeyAsync, true))
	} else {
		s.entry.Delete(KeyAsync)
	}
	return nil
}

// Descend creates a child span whose entry follows this span's current
// position at the moment of descent.
func (s *Span) Descend(name string, fields ...Field) *Span {
	if s.disabled {
		return disabledSpan(s.tracer, name)
	}
	entry := newLinkedEvent(name, LabelEntry, s.Current())
	entry.Set(fields...)
	s.tracer.decorateEntry(name, entry)
	return newSpan(s.tracer, name, entry, s, true)
}

// Enter sends the entry event and returns a context positioned at it.
// Outermost and asynchronous spans bind a fresh logical task; a descended
// synchronous span shares the caller's.
func (s *Span) Enter(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.state != spanConstructed {
		err := s.outOfOrder("enter")
		s.mu.Unlock()
		s.tracer.logOutOfOrder(err)
		return ctx, err
	}
	s.state = spanEntered
	if s.disabled {
		s.mu.Unlock()
		return ctx, nil
	}

	sc := s.bindScope(ctx)
	s.scope = sc
	s.mu.Unlock()

	s.tracer.send(s.entry, sc)
	sc.enter(s, s.entry.Metadata())
	s.tracer.metrics.SpanEntered()

	return withScope(ctx, sc), nil
}

// bindScope selects the logical task the span runs in. Callers hold s.mu.
func (s *Span) bindScope(ctx context.Context) *scope {
	if !s.descended || s.async {
		return scopeFrom(ctx).fork()
	}
	if sc := scopeFrom(ctx); sc != nil {
		return sc
	}
	if s.parent != nil {
		s.parent.mu.Lock()
		sc := s.parent.scope
		s.parent.mu.Unlock()
		if sc != nil {
			return sc
		}
	}
	return newScope(Metadata{})
}

// Exit sends the exit event. When anything happened on the span's path
// since entry, the exit is linked to that last event instead of the entry,
// unless the exit event was given explicit edges.
func (s *Span) Exit(fields ...Field) error {
	s.mu.Lock()
	if s.state != spanEntered {
		err := s.outOfOrder("exit")
		s.mu.Unlock()
		s.tracer.logOutOfOrder(err)
		return err
	}
	s.state = spanExited
	sc := s.scope
	s.mu.Unlock()

	if s.disabled {
		return nil
	}

	if last := sc.position(); last.IsValid() && last != s.entry.Metadata() {
		s.exit.relink(last)
	}
	s.exit.Set(fields...)
	s.tracer.send(s.exit, sc)
	s.tracer.metrics.SpanExited()
	return nil
}

// Info sends an info event on the span's path.
// Nothing is sent unless the span has entered and not yet exited.
func (s *Span) Info(fields ...Field) {
	s.sendOnPath(LabelInfo, nil, fields)
}

// Error sends an error event on the span's path. v must be an error or a
// string; anything else sends nothing.
func (s *Span) Error(v any, fields ...Field) {
	if _, _, ok := describeError(v); !ok {
		return
	}
	s.sendOnPath(LabelError, v, fields)
}

func (s *Span) sendOnPath(label Label, errVal any, fields []Field) {
	if s.disabled {
		return
	}
	s.mu.Lock()
	entered := s.state == spanEntered
	sc := s.scope
	s.mu.Unlock()
	if !entered {
		return
	}

	ev := newLinkedEvent("", label, sc.position())
	if errVal != nil {
		ev.SetError(errVal)
	}
	ev.Set(fields...)
	s.tracer.send(ev, sc)
}

// Run enters the span, runs body synchronously and exits.
// A returned error or a panic is recorded on the exit event; the error is
// then returned and the panic re-raised unchanged.
func (s *Span) Run(ctx context.Context, body func(ctx context.Context) error) error {
	_, err := Run(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, body(ctx)
	})
	return err
}

// Run is the value-returning form of Span.Run.
func Run[T any](ctx context.Context, s *Span, body func(ctx context.Context) (T, error)) (T, error) {
	if s.disabled {
		return body(ctx)
	}

	ctx, err := s.Enter(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		// Either a panic or runtime.Goexit is unwinding body.
		r := recover()
		if r != nil {
			s.exit.SetError(r)
		}
		_ = s.Exit()
		if r != nil {
			panic(r)
		}
	}()

	v, err := body(ctx)
	finished = true
	if err != nil {
		s.exit.SetError(err)
	}
	_ = s.Exit()
	return v, err
}

// RunAsync enters the span as asynchronous and runs body, which must call
// the Wrapper exactly once when its work completes. A panic in body itself
// exits the span and is re-raised.
func (s *Span) RunAsync(ctx context.Context, body func(ctx context.Context, w *Wrapper)) error {
	if s.disabled {
		body(ctx, &Wrapper{})
		return nil
	}

	if !s.Async() {
		if err := s.SetAsync(true); err != nil {
			s.tracer.logOutOfOrder(err)
			return err
		}
	}

	ctx, err := s.Enter(ctx)
	if err != nil {
		return err
	}

	w := &Wrapper{span: s}
	defer func() {
		if r := recover(); r != nil {
			w.done(r, nil)
			panic(r)
		}
	}()

	body(ctx, w)
	return nil
}

func (s *Span) outOfOrder(op string) error {
	return fmt.Errorf("%w: %s span %q", ErrOutOfOrderSpanUse, op, s.name)
}

// Wrapper completes an asynchronous span. The first completion exits the
// span; later ones only pass through to their callbacks.
// The zero Wrapper completes nothing.
type Wrapper struct {
	span *Span
	once sync.Once
}

// Done records a non-nil err on the exit event and exits the span.
func (w *Wrapper) Done(err error, fields ...Field) {
	var errVal any
	if err != nil {
		errVal = err
	}
	w.done(errVal, fields)
}

func (w *Wrapper) done(errVal any, fields []Field) {
	if w == nil || w.span == nil {
		return
	}
	w.once.Do(func() {
		if errVal != nil {
			w.span.exit.SetError(errVal)
		}
		_ = w.span.Exit(fields...)
	})
}

// Wrap returns a callback that completes the span and then calls cb with
// the original argument.
func (w *Wrapper) Wrap(cb func(err error), fields ...Field) func(err error) {
	return func(err error) {
		w.Done(err, fields...)
		if cb != nil {
			cb(err)
		}
	}
}

// WrapResult is Wrap for callbacks that receive a result and an error.
func WrapResult[T any](w *Wrapper, cb func(v T, err error), fields ...Field) func(v T, err error) {
	return func(v T, err error) {
		w.Done(err, fields...)
		if cb != nil {
			cb(v, err)
		}
	}
}
