package benchmarks

import (
	"io"
	"log/slog"
	"testing"

	"github.com/zoobzio/layerz"
)

// newTracer returns a tracer that samples everything into reporter.
func newTracer(b *testing.B, reporter layerz.Reporter) *layerz.Tracer {
	b.Helper()
	tracer, err := layerz.New(
		layerz.WithReporter(reporter),
		layerz.WithSampler(layerz.AlwaysSampler{}),
		layerz.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		b.Fatalf("Failed to create tracer: %v", err)
	}
	return tracer
}

