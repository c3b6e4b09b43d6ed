// Package layerz builds causally ordered trace graphs for nested and
// concurrent units of work.
//
// Every span (layer) sends an entry and an exit event. Each event names
// its causal predecessor with an edge, so a reporter can rebuild the graph
// whatever order events arrive in.
//
// Core Components:
//   - Tracer: Creates spans, makes sampling decisions, sends events.
//   - Span: A named unit of work with paired entry and exit events.
//   - Event: One node of the trace graph.
//   - Metadata: The identity of an event, serialized as an X-Trace token.
//   - Reporter: Transmits sent events (Collector, AsyncReporter, WriterReporter).
//   - Sampler: Decides whether a new trace is recorded.
//
// Basic Usage:
//
//	tracer, err := layerz.New(layerz.WithReporter(reporter))
//	if err != nil {
//		return err
//	}
//
//	err = tracer.StartOrContinue(ctx, r.Header.Get("X-Trace"), "http", func(ctx context.Context) error {
//		// Child spans descend from ctx.
//		return tracer.Instrument(ctx, "db", func(ctx context.Context) error {
//			return query(ctx)
//		})
//	})
//
// Asynchronous work:
//
//	span, _ := tracer.NewSpan(ctx, "fetch")
//	span.RunAsync(ctx, func(ctx context.Context, w *layerz.Wrapper) {
//		client.Fetch(ctx, w.Wrap(callback))
//	})
//
// Logical Tasks:
//
// The position new events attach to lives in the context. Outermost and
// asynchronous spans bind a fresh logical task, so concurrent requests and
// async branches never see each other's position. Use WithScope or Go when
// starting unrelated work from a tracing context.
//
// Thread Safety:
//
// Tracer, Span, Event and all reporters are safe for concurrent use.
package layerz

// Version is the module version reported by the CLI.
const Version = "0.1.0"
