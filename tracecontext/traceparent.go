// Package tracecontext extracts and propagates the W3C traceparent
// header, so request handlers can correlate HTTP/1.1, HTTP/2,
// WebSocket and SSE connections under one trace.
package tracecontext

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const version = "00"

// Context is one request's trace coordinates.
type Context struct {
	TraceID      string // 32 hex chars
	SpanID       string // 16 hex chars
	ParentSpanID string // 16 hex chars, empty for a freshly generated trace
	Sampled      bool
}

// Extract parses a traceparent header value of the form
// <2-hex>-<32-hex>-<16-hex>-<2-hex>. Any malformed or wrong-version
// input yields a freshly generated trace instead of an error: a
// trace-context is never fatal to the request it adorns.
func Extract(traceparent string) Context {
	parts := strings.Split(traceparent, "-")
	if len(parts) == 4 &&
		parts[0] == version &&
		len(parts[1]) == 32 && isHex(parts[1]) &&
		len(parts[2]) == 16 && isHex(parts[2]) &&
		len(parts[3]) == 2 && isHex(parts[3]) {

		flags, _ := hex.DecodeString(parts[3])
		sampled := len(flags) == 1 && flags[0]&0x01 == 1

		return Context{
			TraceID:      parts[1],
			SpanID:       newID(8),
			ParentSpanID: parts[2],
			Sampled:      sampled,
		}
	}

	return Context{
		TraceID: newID(16),
		SpanID:  newID(8),
		Sampled: false,
	}
}

// ToTraceparent serializes c in canonical W3C form for propagation to
// a downstream call.
func (c Context) ToTraceparent() string {
	flags := "00"
	if c.Sampled {
		flags = "01"
	}
	return version + "-" + c.TraceID + "-" + c.SpanID + "-" + flags
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') && !(r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

func newID(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
