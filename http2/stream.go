package http2

import (
	"time"

	"github.com/valyala/fasthttp"
)

// StreamState is the HTTP/2 stream lifecycle state, RFC 7540 §5.1.
type StreamState int8

const (
	StreamIdle StreamState = iota
	StreamReservedLocal
	StreamReservedRemote
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamReservedLocal:
		return "reserved_local"
	case StreamReservedRemote:
		return "reserved_remote"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half_closed_local"
	case StreamHalfClosedRemote:
		return "half_closed_remote"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is one HTTP/2 stream's mutable state: its own flow-control
// windows, the in-progress header block (until END_HEADERS), and the
// fasthttp request context it is being translated into/out of.
type Stream struct {
	id    uint32
	state StreamState

	sendWindow int64 // signed; may legally go negative transiently
	recvWindow int64

	headerBlock      []byte
	headersFinished  bool
	endStreamRecv    bool

	ctx       *fasthttp.RequestCtx
	startedAt time.Time
}

// NewStream creates an IDLE stream with the connection's current
// default windows.
func NewStream(id uint32, initialSendWindow, initialRecvWindow int64) *Stream {
	return &Stream{
		id:         id,
		state:      StreamIdle,
		sendWindow: initialSendWindow,
		recvWindow: initialRecvWindow,
		startedAt:  time.Now(),
	}
}

func (s *Stream) ID() uint32         { return s.id }
func (s *Stream) State() StreamState { return s.state }
func (s *Stream) SetState(st StreamState) { s.state = st }

func (s *Stream) SendWindow() int64     { return s.sendWindow }
func (s *Stream) RecvWindow() int64     { return s.recvWindow }
func (s *Stream) AddSendWindow(d int64) { s.sendWindow += d }
func (s *Stream) AddRecvWindow(d int64) { s.recvWindow += d }

func (s *Stream) AppendHeaderBlock(b []byte) {
	s.headerBlock = append(s.headerBlock, b...)
}
func (s *Stream) HeaderBlock() []byte { return s.headerBlock }
func (s *Stream) ResetHeaderBlock()   { s.headerBlock = s.headerBlock[:0] }

func (s *Stream) HeadersFinished() bool      { return s.headersFinished }
func (s *Stream) SetHeadersFinished(v bool)  { s.headersFinished = v }
func (s *Stream) EndStreamRecv() bool        { return s.endStreamRecv }
func (s *Stream) SetEndStreamRecv(v bool)    { s.endStreamRecv = v }

// IsClientInitiated reports whether id is an odd (client-opened)
// stream id, per RFC 7540 §5.1.1.
func IsClientInitiated(id uint32) bool { return id%2 == 1 }
