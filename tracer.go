package layerz

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/clockz"

	"github.com/zoobzio/layerz/config"
)

// settings is an immutable snapshot of the runtime configuration.
type settings struct {
	cfg    config.Config
	mode   TracingMode
	source SampleSource
}

// Tracer creates spans, makes sampling decisions and hands sent events to
// its reporter.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	reporter Reporter
	sampler  Sampler
	clock    clockz.Clock
	logger   *slog.Logger
	metrics  *Metrics
	settings atomic.Pointer[settings]
	updateMu sync.Mutex
}

// Option configures a Tracer.
type Option func(*options)

type options struct {
	reporter Reporter
	sampler  Sampler
	cfg      *config.Config
	clock    clockz.Clock
	logger   *slog.Logger
	metrics  *Metrics
}

// WithReporter sets the reporter. Defaults to Discard.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// WithSampler sets the sampler consulted for new traces. Defaults to a
// RateSampler.
func WithSampler(s Sampler) Option {
	return func(o *options) {
		o.sampler = s
	}
}

// WithConfig sets the initial configuration. Defaults to config.Default().
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.cfg = &cfg
	}
}

// WithClock sets the clock used for event timestamps.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// New creates a tracer. An invalid configuration is rejected.
func New(opts ...Option) (*Tracer, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.reporter == nil {
		o.reporter = Discard
	}
	if o.sampler == nil {
		o.sampler = NewRateSampler()
	}
	if o.clock == nil {
		o.clock = clockz.RealClock
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "layerz")
	}

	t := &Tracer{
		reporter: o.reporter,
		sampler:  o.sampler,
		clock:    o.clock,
		logger:   o.logger,
		metrics:  o.metrics,
	}

	cfg := config.Default()
	if o.cfg != nil {
		cfg = *o.cfg
	}
	if err := t.ApplyConfig(cfg); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracer) current() *settings {
	return t.settings.Load()
}

// Config returns the configuration in force.
func (t *Tracer) Config() config.Config {
	return t.current().cfg
}

// Enabled reports whether instrumentation is on.
func (t *Tracer) Enabled() bool {
	return t.current().cfg.Enabled
}

// ApplyConfig replaces the runtime configuration.
// An invalid configuration is rejected and the previous one stays in force.
func (t *Tracer) ApplyConfig(cfg config.Config) error {
	if err := config.Validate(&cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSampleConfiguration, err)
	}
	mode, err := ParseTracingMode(cfg.TracingMode)
	if err != nil {
		return err
	}

	source := SourceDefault
	if cfg.SampleRate != config.DefaultSampleRate {
		source = SourceFile
	}

	t.updateMu.Lock()
	defer t.updateMu.Unlock()
	t.settings.Store(&settings{cfg: cfg, mode: mode, source: source})
	return nil
}

// SetSampleRate sets the global sample rate, out of MaxSampleRate.
func (t *Tracer) SetSampleRate(rate int) error {
	if rate < 0 || rate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d out of range [0, %d]", ErrInvalidSampleConfiguration, rate, MaxSampleRate)
	}

	t.updateMu.Lock()
	defer t.updateMu.Unlock()
	next := *t.current()
	next.cfg.SampleRate = rate
	next.source = SourceCustom
	t.settings.Store(&next)
	return nil
}

// SetTracingMode sets the tracing mode.
func (t *Tracer) SetTracingMode(mode TracingMode) error {
	if mode < ModeAlways || mode > ModeNever {
		return fmt.Errorf("%w: invalid tracing mode %d", ErrInvalidSampleConfiguration, int(mode))
	}

	t.updateMu.Lock()
	defer t.updateMu.Unlock()
	next := *t.current()
	next.mode = mode
	next.cfg.TracingMode = mode.String()
	t.settings.Store(&next)
	return nil
}

// sampleConfig returns the sampler input for one layer.
func (t *Tracer) sampleConfig(layer string) SampleConfig {
	s := t.current()
	_, rate, _, overridden := s.cfg.Layer(layer)
	source := s.source
	if overridden {
		source = SourceLayer
	}
	return SampleConfig{Mode: s.mode, Rate: rate, Source: source}
}

func (t *Tracer) layerEnabled(layer string) bool {
	enabled, _, _, _ := t.current().cfg.Layer(layer)
	return enabled
}

// decorateEntry adds the entry fields every span carries.
func (t *Tracer) decorateEntry(layer string, entry *Event) {
	if _, _, backtraces, _ := t.current().cfg.Layer(layer); backtraces {
		entry.Set(String(KeyBacktrace, string(debug.Stack())))
	}
}

// NewSpan creates a span in ctx. When ctx is tracing the span descends from
// its current position; otherwise it starts a new trace, which consults the
// sampler.
func (t *Tracer) NewSpan(ctx context.Context, name string, fields ...Field) (*Span, error) {
	if !t.layerEnabled(name) {
		return disabledSpan(t, name), nil
	}

	if current := Current(ctx); current.IsValid() {
		entry := newLinkedEvent(name, LabelEntry, current)
		entry.Set(withoutSampleKeys(fields)...)
		t.decorateEntry(name, entry)
		return newSpan(t, name, entry, LastSpan(ctx), true), nil
	}

	return t.newTraceSpan(name, Metadata{}, fields)
}

// newTraceSpan creates an outermost span, continuing parent when it is
// valid and starting a new trace otherwise.
func (t *Tracer) newTraceSpan(name string, parent Metadata, fields []Field) (*Span, error) {
	d, err := Decide(t.sampler, name, parent, t.sampleConfig(name))
	if err != nil {
		return nil, err
	}

	var entry *Event
	if d.Continued {
		entry = newLinkedEvent(name, LabelEntry, parent)
		entry.Set(withoutSampleKeys(fields)...)
	} else {
		t.metrics.RecordDecision(d)
		entry = newRootEvent(name, LabelEntry, NewMetadata(d.Sample))
		entry.Set(fields...)
		entry.Set(
			Int(KeySampleRate, d.Rate),
			Int(KeySampleSource, int(d.Source)),
		)
	}
	t.decorateEntry(name, entry)
	return newSpan(t, name, entry, nil, false), nil
}

// withoutSampleKeys drops sample provenance keys, which only root entries
// carry.
func withoutSampleKeys(fields []Field) []Field {
	out := fields[:0:0]
	for _, f := range fields {
		if f.Key == KeySampleRate || f.Key == KeySampleSource {
			continue
		}
		out = append(out, f)
	}
	return out
}

// startOrContinue picks the span for a request that may carry an upstream
// token. A tracing ctx wins over the token; a malformed token is treated as
// absent.
func (t *Tracer) startOrContinue(ctx context.Context, token, name string, fields []Field) (*Span, error) {
	if !t.layerEnabled(name) {
		return disabledSpan(t, name), nil
	}
	if Tracing(ctx) {
		return t.NewSpan(ctx, name, fields...)
	}

	parent, err := ParseMetadata(token)
	if err != nil && token != "" {
		t.logger.Debug("ignoring malformed x-trace token", "layer", name, "error", err)
	}
	return t.newTraceSpan(name, parent, fields)
}

// StartSpan returns the span StartOrContinue would run body in, for callers
// that need the span itself, such as to advertise its exit token before the
// body finishes.
func (t *Tracer) StartSpan(ctx context.Context, token, name string, fields ...Field) (*Span, error) {
	return t.startOrContinue(ctx, token, name, fields)
}

// StartOrContinue runs body in a span that continues ctx, or else the trace
// named by token, or else a new trace.
func (t *Tracer) StartOrContinue(ctx context.Context, token, name string, body func(ctx context.Context) error, fields ...Field) error {
	span, err := t.startOrContinue(ctx, token, name, fields)
	if err != nil {
		return err
	}
	return span.Run(ctx, body)
}

// StartOrContinueAsync is StartOrContinue for asynchronous bodies.
func (t *Tracer) StartOrContinueAsync(ctx context.Context, token, name string, body func(ctx context.Context, w *Wrapper), fields ...Field) error {
	span, err := t.startOrContinue(ctx, token, name, fields)
	if err != nil {
		return err
	}
	return span.RunAsync(ctx, body)
}

// StartOrContinue is the value-returning form of Tracer.StartOrContinue.
func StartOrContinue[T any](ctx context.Context, t *Tracer, token, name string, body func(ctx context.Context) (T, error), fields ...Field) (T, error) {
	span, err := t.startOrContinue(ctx, token, name, fields)
	if err != nil {
		var zero T
		return zero, err
	}
	return Run(ctx, span, body)
}

// Instrument runs body in a child span when ctx is tracing, and runs it
// unchanged otherwise.
func (t *Tracer) Instrument(ctx context.Context, name string, body func(ctx context.Context) error, fields ...Field) error {
	if !Tracing(ctx) {
		return body(ctx)
	}
	span, err := t.NewSpan(ctx, name, fields...)
	if err != nil {
		return err
	}
	return span.Run(ctx, body)
}

// InstrumentAsync is Instrument for asynchronous bodies. When ctx is not
// tracing body receives a Wrapper that completes nothing.
func (t *Tracer) InstrumentAsync(ctx context.Context, name string, body func(ctx context.Context, w *Wrapper), fields ...Field) error {
	if !Tracing(ctx) {
		body(ctx, &Wrapper{})
		return nil
	}
	span, err := t.NewSpan(ctx, name, fields...)
	if err != nil {
		return err
	}
	return span.RunAsync(ctx, body)
}

// Instrument is the value-returning form of Tracer.Instrument.
func Instrument[T any](ctx context.Context, t *Tracer, name string, body func(ctx context.Context) (T, error), fields ...Field) (T, error) {
	if !Tracing(ctx) {
		return body(ctx)
	}
	span, err := t.NewSpan(ctx, name, fields...)
	if err != nil {
		var zero T
		return zero, err
	}
	return Run(ctx, span, body)
}

// ReportInfo sends an info event at ctx's current position.
// Nothing is sent when ctx is not tracing.
func (t *Tracer) ReportInfo(ctx context.Context, fields ...Field) {
	t.reportOnPath(ctx, LabelInfo, nil, fields)
}

// ReportError sends an error event at ctx's current position. v must be an
// error or a string; anything else sends nothing.
func (t *Tracer) ReportError(ctx context.Context, v any, fields ...Field) {
	if _, _, ok := describeError(v); !ok {
		return
	}
	t.reportOnPath(ctx, LabelError, v, fields)
}

func (t *Tracer) reportOnPath(ctx context.Context, label Label, errVal any, fields []Field) {
	if !t.Enabled() {
		return
	}
	sc := scopeFrom(ctx)
	current := sc.position()
	if !current.IsValid() {
		return
	}

	ev := newLinkedEvent("", label, current)
	if errVal != nil {
		ev.SetError(errVal)
	}
	ev.Set(fields...)
	t.send(ev, sc)
}

// send timestamps and freezes ev, advances its logical task, and hands it to
// the reporter when the trace is sampled. Reporter failures are logged and
// counted, never returned.
func (t *Tracer) send(ev *Event, sc *scope) {
	if !ev.markSent(t.clock.Now()) {
		t.logOutOfOrder(fmt.Errorf("%w: event %s sent twice", ErrOutOfOrderSpanUse, ev.String()))
		return
	}
	if sc != nil {
		sc.advance(ev.Metadata())
	}

	if !ev.Metadata().Sampled() {
		t.metrics.RecordDropped(DropUnsampled)
		return
	}

	start := t.clock.Now()
	if err := t.safeSend(ev); err != nil {
		t.metrics.RecordReporterFailure()
		t.logger.Warn("reporter send failed",
			"x_trace", ev.String(),
			"label", string(ev.Label()),
			"error", err,
		)
		return
	}
	t.metrics.RecordSent(ev.Label(), t.clock.Since(start))
}

func (t *Tracer) safeSend(ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reporter panic: %v", r)
		}
	}()
	return t.reporter.Send(ev)
}

func (t *Tracer) logOutOfOrder(err error) {
	if t == nil || err == nil {
		return
	}
	t.logger.Error("span used out of order", "error", err)
}
