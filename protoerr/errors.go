// Package protoerr implements the error taxonomy shared by the HTTP/2
// engine, the WebSocket pipeline and the SSE sender: every fatal
// condition is wrapped in a Kind so the owning connection task can
// decide, with a single errors.As, whether to emit a GOAWAY, a
// WebSocket close frame, an HTTP 400, or just log and move on.
package protoerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the taxonomy of §7, independent of its
// concrete Go type.
type Kind uint8

const (
	// Protocol covers malformed frames, illegal state transitions and
	// illegal stream ids.
	Protocol Kind = iota
	// FlowControl covers a flow-control window violation.
	FlowControl
	// Compression covers an invalid HPACK index or table state.
	Compression
	// FrameSize covers a frame exceeding the negotiated maximum.
	FrameSize
	// Handshake covers a rejected WebSocket upgrade.
	Handshake
	// State covers an operation attempted in the wrong lifecycle state
	// (e.g. sendEvent on a non-OPEN SSE connection).
	State
	// IO covers a remote close or broken pipe.
	IO
)

func (k Kind) String() string {
	switch k {
	case Protocol:
		return "protocol_error"
	case FlowControl:
		return "flow_control_error"
	case Compression:
		return "compression_error"
	case FrameSize:
		return "frame_size_error"
	case Handshake:
		return "handshake_error"
	case State:
		return "state_error"
	case IO:
		return "io_error"
	default:
		return "unknown_error"
	}
}

// Error wraps a Kind, an optional HTTP/2 error code and WebSocket
// close code (zero when not applicable), and the underlying cause.
type Error struct {
	Kind        Kind
	HTTP2Code   uint32
	WSCloseCode uint16
	Msg         string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind, so
// callers can do errors.Is(err, protoerr.New(protoerr.Protocol, "")).
func (e *Error) Is(target error) bool {
	var o *Error
	if !errors.As(target, &o) {
		return false
	}
	return o.Kind == e.Kind
}

// New builds a bare protocol-taxonomy error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a Kind to an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// HTTP2 builds a protocol-taxonomy error carrying the HTTP/2 error
// code that must accompany the connection's GOAWAY frame.
func HTTP2(kind Kind, code uint32, msg string) *Error {
	return &Error{Kind: kind, HTTP2Code: code, Msg: msg}
}

// WSClose builds a Handshake/Protocol error carrying the WebSocket
// close status code (e.g. 1002) that must be sent before closing.
func WSClose(kind Kind, closeCode uint16, msg string) *Error {
	return &Error{Kind: kind, WSCloseCode: closeCode, Msg: msg}
}

// KindOf extracts the Kind from err if it (or something it wraps) is
// a *Error; ok is false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
