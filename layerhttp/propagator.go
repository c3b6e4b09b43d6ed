// Package layerhttp carries layerz traces across HTTP boundaries.
//
// Incoming requests are continued from their X-Trace header by Middleware,
// and outgoing requests made through Transport carry the caller's position
// downstream.
//
//	tracer, _ := layerz.New(layerz.WithReporter(reporter))
//	mux := http.NewServeMux()
//	http.ListenAndServe(":8080", layerhttp.Middleware(tracer, "http", mux))
package layerhttp

import (
	"context"
	"net/http"

	"github.com/zoobzio/layerz"
)

// Header is the HTTP header that carries X-Trace tokens.
const Header = layerz.KeyXTrace

// Inject writes ctx's current X-Trace token into h.
// Nothing is written when ctx is not tracing.
func Inject(ctx context.Context, h http.Header) {
	if id := layerz.TraceID(ctx); id != "" {
		h.Set(Header, id)
	}
}

// Extract returns the X-Trace token in h, or "" when absent.
// The token is not validated; StartOrContinue treats malformed tokens as
// absent.
func Extract(h http.Header) string {
	return h.Get(Header)
}
