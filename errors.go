package layerz

import "errors"

var (
	// ErrMalformedIdentifier is returned when an X-Trace token cannot be parsed.
	// Callers treat the context as absent.
	ErrMalformedIdentifier = errors.New("malformed trace identifier")

	// ErrInvalidSampleConfiguration is returned when a sample rate or tracing
	// mode is out of range.
	ErrInvalidSampleConfiguration = errors.New("invalid sample configuration")

	// ErrOutOfOrderSpanUse marks a contract violation: exit without enter,
	// a second enter or a second exit of the same span.
	ErrOutOfOrderSpanUse = errors.New("out of order span use")
)
