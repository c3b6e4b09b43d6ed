package layerhttp

import (
	"context"
	"net/http"

	"github.com/zoobzio/layerz"
)

// Keys recorded on HTTP spans.
const (
	KeyURL    = "URL"
	KeyMethod = "Method"
	KeyHost   = "HTTP-Host"
	KeyStatus = "Status"
)

// Middleware runs each request in a span named layer. The span continues the
// inbound X-Trace token when one is present. The span's exit token is set on
// the response X-Trace header before next writes, so callers can link to the
// end of the request.
//
// A sampler failure serves the request untraced.
func Middleware(tracer *layerz.Tracer, layer string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span, err := tracer.StartSpan(r.Context(), Extract(r.Header), layer,
			layerz.String(KeyURL, r.URL.String()),
			layerz.String(KeyMethod, r.Method),
			layerz.String(KeyHost, r.Host),
		)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if !span.Disabled() {
			w.Header().Set(Header, span.ExitEvent().String())
		}

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		_ = span.Run(r.Context(), func(ctx context.Context) error {
			next.ServeHTTP(rw, r.WithContext(ctx))
			if !span.Disabled() {
				span.ExitEvent().Set(layerz.Int(KeyStatus, rw.status))
			}
			return nil
		})
	})
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
