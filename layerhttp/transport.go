package layerhttp

import (
	"context"
	"net/http"

	"github.com/zoobzio/layerz"
)

// Transport is an http.RoundTripper that runs each request made from a
// tracing context in a child span and injects the span's position into the
// outgoing X-Trace header. When the response carries an X-Trace token the
// exit event is also linked to it, joining the downstream service's events
// into the caller's trace.
type Transport struct {
	tracer *layerz.Tracer
	layer  string
	base   http.RoundTripper
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(tracer *layerz.Tracer, layer string, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{tracer: tracer, layer: layer, base: base}
}

// RoundTrip implements http.RoundTripper. Requests whose context is not
// tracing are passed to the base transport unchanged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if !layerz.Tracing(ctx) {
		return t.base.RoundTrip(req)
	}

	span, err := t.tracer.NewSpan(ctx, t.layer,
		layerz.String(KeyURL, req.URL.String()),
		layerz.String(KeyMethod, req.Method),
		layerz.String(KeyHost, req.URL.Host),
	)
	if err != nil {
		return t.base.RoundTrip(req)
	}

	return layerz.Run(ctx, span, func(ctx context.Context) (*http.Response, error) {
		out := req.Clone(ctx)
		Inject(ctx, out.Header)

		resp, err := t.base.RoundTrip(out)
		if err != nil || span.Disabled() {
			return resp, err
		}

		exit := span.ExitEvent()
		exit.Set(layerz.Int(KeyStatus, resp.StatusCode))
		if remote, perr := layerz.ParseMetadata(Extract(resp.Header)); perr == nil {
			exit.AddEdge(layerz.Current(ctx))
			exit.AddEdge(remote)
		}
		return resp, nil
	})
}
