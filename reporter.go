package layerz

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// Reporter transmits finalized events.
// Send must not retain the event for mutation; sent events are frozen.
// Errors are logged and counted by the tracer and never reach the
// instrumented code.
type Reporter interface {
	Send(ev *Event) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ev *Event) error

// Send calls f.
func (f ReporterFunc) Send(ev *Event) error {
	return f(ev)
}

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(*Event) error { return nil })

// MultiReporter sends each event to every reporter, in order.
// All reporters are tried; their errors are joined.
type MultiReporter []Reporter

// Send fans the event out.
func (m MultiReporter) Send(ev *Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Send(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriterReporter writes one JSON object per event.
// Intended for debugging and local inspection, not as a transport.
type WriterReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterReporter creates a reporter writing to w.
func NewWriterReporter(w io.Writer) *WriterReporter {
	return &WriterReporter{enc: json.NewEncoder(w)}
}

// Send encodes the event's report fields.
func (r *WriterReporter) Send(ev *Event) error {
	doc := reportDocument(ev)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(doc)
}

// reportDocument flattens report fields to a JSON-friendly map. Multiple
// edges are rendered as a list under "Edge".
func reportDocument(ev *Event) map[string]any {
	fields := ev.Report()
	doc := make(map[string]any, len(fields))
	var edges []string
	for _, f := range fields {
		if f.Key == KeyEdge {
			edges = append(edges, f.Value.String())
			continue
		}
		doc[f.Key] = f.Value.Interface()
	}
	switch len(edges) {
	case 0:
	case 1:
		doc[KeyEdge] = edges[0]
	default:
		doc[KeyEdge] = edges
	}
	return doc
}
