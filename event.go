package layerz

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// Label classifies an event within its span.
type Label string

const (
	LabelEntry Label = "entry"
	LabelExit  Label = "exit"
	LabelInfo  Label = "info"
	LabelError Label = "error"
)

// Report field keys.
const (
	KeyXTrace       = "X-Trace"
	KeyEdge         = "Edge"
	KeyLayer        = "Layer"
	KeyLabel        = "Label"
	KeyTimestamp    = "Timestamp_u"
	KeyAsync        = "Async"
	KeyErrorClass   = "ErrorClass"
	KeyErrorMsg     = "ErrorMsg"
	KeyBacktrace    = "Backtrace"
	KeySampleRate   = "SampleRate"
	KeySampleSource = "SampleSource"
)

// stringErrorClass is reported for errors given as plain text.
const stringErrorClass = "Error"

func isReservedKey(key string) bool {
	switch key {
	case KeyXTrace, KeyEdge, KeyLayer, KeyLabel, KeyTimestamp:
		return true
	}
	return false
}

// Event is one node of the trace graph.
// Events are mutable until sent and frozen afterwards: setters on a sent
// event are no-ops.
type Event struct {
	mu sync.Mutex

	metadata  Metadata
	layer     string
	label     Label
	fields    Fields
	edges     []Metadata
	implicit  bool // edges[0] is the construction-time link to the entry event
	explicit  bool // edges were set by AddEdge; exit relinking is skipped
	sent      bool
	timestamp time.Time
}

// NewEvent creates an event linked to its causal predecessor.
// A valid parent is continued with one edge; otherwise the context's current
// position is the implicit parent; with neither, the event starts a new
// sampled trace and has no edge.
func NewEvent(ctx context.Context, layer string, label Label, parent Metadata) *Event {
	if parent.IsValid() {
		return newLinkedEvent(layer, label, parent)
	}
	if current := Current(ctx); current.IsValid() {
		return newLinkedEvent(layer, label, current)
	}
	return newRootEvent(layer, label, NewMetadata(true))
}

func newLinkedEvent(layer string, label Label, parent Metadata) *Event {
	return &Event{
		metadata: parent.Continue(),
		layer:    layer,
		label:    label,
		edges:    []Metadata{parent},
	}
}

func newRootEvent(layer string, label Label, md Metadata) *Event {
	return &Event{
		metadata: md,
		layer:    layer,
		label:    label,
	}
}

// Metadata returns the event's identity.
func (e *Event) Metadata() Metadata {
	return e.metadata
}

// String returns the event's X-Trace token.
func (e *Event) String() string {
	return e.metadata.String()
}

// Layer returns the span name, empty for info and error events.
func (e *Event) Layer() string {
	return e.layer
}

// Label returns the event label.
func (e *Event) Label() Label {
	return e.label
}

// Edges returns a copy of the causal predecessors.
func (e *Event) Edges() []Metadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	edges := make([]Metadata, len(e.edges))
	copy(edges, e.edges)
	return edges
}

// Timestamp returns the send time, zero until sent.
func (e *Event) Timestamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timestamp
}

// Sent reports whether the event has been handed to the reporter.
func (e *Event) Sent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sent
}

// Get returns a free-form field value.
func (e *Event) Get(key string) (Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields.Get(key)
}

// Has reports whether a free-form field is present.
func (e *Event) Has(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields.Has(key)
}

// Fields returns the free-form fields in insertion order.
func (e *Event) Fields() []Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields.List()
}

// Set adds or overwrites fields. Reserved report keys are ignored.
func (e *Event) Set(fields ...Field) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sent {
		return
	}
	for _, f := range fields {
		if isReservedKey(f.Key) {
			continue
		}
		e.fields.Set(f)
	}
}

// Delete removes a free-form field.
func (e *Event) Delete(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sent {
		return
	}
	e.fields.Delete(key)
}

// SetError records error details on the event.
// v must be an error or a string; any other input is ignored. Each call
// replaces ErrorClass, ErrorMsg and Backtrace entirely.
func (e *Event) SetError(v any) {
	class, msg, ok := describeError(v)
	if !ok {
		return
	}
	e.Set(
		String(KeyErrorClass, class),
		String(KeyErrorMsg, msg),
		String(KeyBacktrace, string(debug.Stack())),
	)
}

// describeError extracts class and message from an error or string.
func describeError(v any) (class, msg string, ok bool) {
	switch err := v.(type) {
	case error:
		msg, ok := errorMessage(err)
		if !ok {
			return "", "", false
		}
		return fmt.Sprintf("%T", err), msg, true
	case string:
		return stringErrorClass, err, true
	default:
		return "", "", false
	}
}

// errorMessage calls err.Error, reporting false when it panics, as a typed
// nil pointer error usually does.
func errorMessage(err error) (msg string, ok bool) {
	defer func() {
		if recover() != nil {
			msg, ok = "", false
		}
	}()
	return err.Error(), true
}

// AddEdge records an explicit causal predecessor. An explicitly edged exit
// event is not relinked when its span exits.
func (e *Event) AddEdge(md Metadata) {
	if !md.IsValid() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sent {
		return
	}
	if e.implicit {
		e.edges = e.edges[:0]
		e.implicit = false
	}
	e.edges = append(e.edges, md)
	e.explicit = true
}

// relink points the event at the last position on its path, replacing the
// construction-time link.
func (e *Event) relink(md Metadata) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sent || e.explicit || !md.IsValid() {
		return
	}
	if e.implicit {
		e.edges[0] = md
		e.implicit = false
		return
	}
	e.edges = append(e.edges, md)
}

// markSent freezes the event. It returns false if the event was already sent.
func (e *Event) markSent(ts time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sent {
		return false
	}
	e.sent = true
	e.timestamp = ts
	return true
}

// Report renders the event in report field order: X-Trace, one Edge per
// predecessor, Layer for boundary events, Label, Timestamp_u once sent, then
// the free-form fields.
func (e *Event) Report() []Field {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Field, 0, 4+len(e.edges)+e.fields.Len())
	out = append(out, String(KeyXTrace, e.metadata.String()))
	for _, edge := range e.edges {
		out = append(out, String(KeyEdge, edge.OpID().String()))
	}
	if e.layer != "" && (e.label == LabelEntry || e.label == LabelExit) {
		out = append(out, String(KeyLayer, e.layer))
	}
	out = append(out, String(KeyLabel, string(e.label)))
	if !e.timestamp.IsZero() {
		out = append(out, Int64(KeyTimestamp, e.timestamp.UnixMicro()))
	}
	return append(out, e.fields.List()...)
}
