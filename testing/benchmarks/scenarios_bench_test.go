package benchmarks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zoobzio/layerz"
	"github.com/zoobzio/layerz/layerhttp"
)

// BenchmarkWebServerScenario simulates a request continuing an upstream
// trace through the HTTP middleware, with a database call inside.
func BenchmarkWebServerScenario(b *testing.B) {
	tracer := newTracer(b, layerz.Discard)

	handler := layerhttp.Middleware(tracer, "http", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = tracer.Instrument(r.Context(), "db", func(ctx context.Context) error {
			tracer.ReportInfo(ctx, layerz.String("query", "SELECT 1"))
			return nil
		})
		w.WriteHeader(http.StatusOK)
	}))

	upstream := layerz.NewMetadata(true).String()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
		req.Header.Set(layerhttp.Header, upstream)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkErrorScenario measures spans whose bodies fail.
func BenchmarkErrorScenario(b *testing.B) {
	tracer := newTracer(b, layerz.Discard)
	errFailed := errors.New("failed")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tracer.StartOrContinue(context.Background(), "", "failing", func(ctx context.Context) error {
			return errFailed
		})
	}
}

// BenchmarkUnsampledScenario measures the cost of traces that are tracked
// but never reported.
func BenchmarkUnsampledScenario(b *testing.B) {
	tracer, err := layerz.New(layerz.WithSampler(layerz.NeverSampler{}), layerz.WithReporter(layerz.Discard))
	if err != nil {
		b.Fatal(err)
	}
	body := func(ctx context.Context) error {
		return tracer.Instrument(ctx, "child", func(context.Context) error { return nil })
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tracer.StartOrContinue(context.Background(), "", "root", body)
	}
}
