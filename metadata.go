package layerz

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// X-Trace token layout: version-task-op-flags, no separators.
// Example: 2B0AF7651916CD43DD8448EB211C80319C12345678B7AD6B716920333101
//
// Version: 2 hex characters ("2B")
// Task:    40 hex characters (20 bytes)
// Op:      16 hex characters (8 bytes)
// Flags:   2 hex characters (8 bits)
const (
	TaskIDSize = 20
	OpIDSize   = 8

	versionHex = "2B"
	versionLen = 2
	taskLen    = TaskIDSize * 2
	opLen      = OpIDSize * 2
	flagsLen   = 2
	tokenLen   = versionLen + taskLen + opLen + flagsLen

	// FlagSampled marks a trace whose events are reported.
	FlagSampled byte = 0x01
)

// TaskID identifies one logical trace.
type TaskID [TaskIDSize]byte

// OpID identifies one event within a trace.
type OpID [OpIDSize]byte

// String returns the upper-case hex encoding.
func (t TaskID) String() string {
	return strings.ToUpper(hex.EncodeToString(t[:]))
}

// IsZero returns true if the task ID is all zeros.
func (t TaskID) IsZero() bool {
	return t == TaskID{}
}

// String returns the upper-case hex encoding.
func (o OpID) String() string {
	return strings.ToUpper(hex.EncodeToString(o[:]))
}

// IsZero returns true if the op ID is all zeros.
func (o OpID) IsZero() bool {
	return o == OpID{}
}

// Metadata is the identity of one event: task, op and flags.
// It is an immutable value; two Metadata are the same event only if equal.
type Metadata struct {
	taskID TaskID
	opID   OpID
	flags  byte
}

// NewMetadata starts a new trace with fresh task and op IDs.
func NewMetadata(sampled bool) Metadata {
	m := Metadata{
		taskID: newTaskID(),
		opID:   newOpID(),
	}
	if sampled {
		m.flags |= FlagSampled
	}
	return m
}

// ParseMetadata parses an X-Trace token.
// A well-formed token whose IDs are all zero yields an invalid Metadata and
// no error: it is the "no context" sentinel.
func ParseMetadata(token string) (Metadata, error) {
	var m Metadata

	if len(token) != tokenLen {
		return m, fmt.Errorf("%w: token must be %d characters, got %d", ErrMalformedIdentifier, tokenLen, len(token))
	}
	if !strings.EqualFold(token[:versionLen], versionHex) {
		return m, fmt.Errorf("%w: unsupported version %q", ErrMalformedIdentifier, token[:versionLen])
	}

	raw, err := hex.DecodeString(token[versionLen:])
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformedIdentifier, err)
	}

	copy(m.taskID[:], raw[:TaskIDSize])
	copy(m.opID[:], raw[TaskIDSize:TaskIDSize+OpIDSize])
	m.flags = raw[TaskIDSize+OpIDSize]

	return m, nil
}

// ContinueFrom parses a token and returns a continuation of it.
func ContinueFrom(token string) (Metadata, error) {
	parent, err := ParseMetadata(token)
	if err != nil {
		return Metadata{}, err
	}
	if !parent.IsValid() {
		return Metadata{}, fmt.Errorf("%w: token carries no context", ErrMalformedIdentifier)
	}
	return parent.Continue(), nil
}

// Continue returns a new Metadata in the same task with a fresh op ID.
// The sampled flag is preserved.
func (m Metadata) Continue() Metadata {
	return Metadata{
		taskID: m.taskID,
		opID:   newOpID(),
		flags:  m.flags,
	}
}

// WithSampled returns a copy with the sampled flag set or cleared.
func (m Metadata) WithSampled(sampled bool) Metadata {
	if sampled {
		m.flags |= FlagSampled
	} else {
		m.flags &^= FlagSampled
	}
	return m
}

// TaskID returns the trace identifier.
func (m Metadata) TaskID() TaskID {
	return m.taskID
}

// OpID returns the event identifier.
func (m Metadata) OpID() OpID {
	return m.opID
}

// Flags returns the raw flag byte.
func (m Metadata) Flags() byte {
	return m.flags
}

// Sampled reports whether the trace is being recorded.
func (m Metadata) Sampled() bool {
	return m.flags&FlagSampled != 0
}

// IsValid returns false for the all-zero sentinel.
func (m Metadata) IsValid() bool {
	return !m.taskID.IsZero() && !m.opID.IsZero()
}

// String renders the X-Trace token.
func (m Metadata) String() string {
	var b strings.Builder
	b.Grow(tokenLen)
	b.WriteString(versionHex)
	b.WriteString(m.taskID.String())
	b.WriteString(m.opID.String())
	fmt.Fprintf(&b, "%02X", m.flags)
	return b.String()
}
