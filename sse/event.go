// Package sse implements the Server-Sent Events wire format, the
// per-connection sender with bounded backpressure, and the
// topic/IP-limited connection registry.
package sse

import (
	"strconv"
	"strings"

	"github.com/domsolutions/multiproto/bufferpool"
)

// Event is one Server-Sent Event, RFC-unspecified but conventional
// per the WHATWG HTML living standard §9.2.
type Event struct {
	Data    string
	Event   string
	ID      string
	RetryMS int
}

// KeepaliveComment is written on the wire when no event has arrived
// within the keepalive interval, to hold the connection open through
// idle proxies.
const KeepaliveComment = ": keepalive\n\n"

// Serialize renders e in the wire format: optional event:/id:/retry:
// lines, one data: line per line of Data, terminated by a blank line.
func (e *Event) Serialize() []byte {
	var b strings.Builder

	if e.Event != "" {
		b.WriteString("event:")
		b.WriteString(e.Event)
		b.WriteByte('\n')
	}
	if e.ID != "" {
		b.WriteString("id:")
		b.WriteString(e.ID)
		b.WriteByte('\n')
	}
	if e.RetryMS > 0 {
		b.WriteString("retry:")
		b.WriteString(strconv.Itoa(e.RetryMS))
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(e.Data, "\n") {
		b.WriteString("data:")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	return []byte(b.String())
}

// SerializeInto renders e the same way Serialize does, but into buf's
// backing array instead of allocating a new one, for the sender loop's
// hot path. The returned slice aliases buf and is only valid until buf
// is released back to its pool. If e's serialized form doesn't fit in
// buf's capacity, it falls back to Serialize; buf may then hold a
// partial rendering, which is not part of the result.
func (e *Event) SerializeInto(buf *bufferpool.Buffer) []byte {
	buf.Pos = 0
	ok := true
	write := func(s string) {
		if !ok {
			return
		}
		n := len(s)
		if buf.Pos+n > buf.Limit {
			ok = false
			return
		}
		copy(buf.Bytes[buf.Pos:], s)
		buf.Pos += n
	}

	if e.Event != "" {
		write("event:")
		write(e.Event)
		write("\n")
	}
	if e.ID != "" {
		write("id:")
		write(e.ID)
		write("\n")
	}
	if e.RetryMS > 0 {
		write("retry:")
		write(strconv.Itoa(e.RetryMS))
		write("\n")
	}
	for _, line := range strings.Split(e.Data, "\n") {
		write("data:")
		write(line)
		write("\n")
	}
	write("\n")

	if !ok {
		return e.Serialize()
	}
	return buf.Bytes[:buf.Pos]
}
