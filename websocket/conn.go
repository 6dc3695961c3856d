package websocket

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"github.com/domsolutions/multiproto/metrics"
	"github.com/domsolutions/multiproto/protoerr"
)

// MessageType distinguishes a reassembled text message from a binary
// one, mirroring the opcode the first fragment carried.
type MessageType int

const (
	TextMessage MessageType = iota
	BinaryMessage
)

// Handler is the set of callbacks a Server invokes over a Conn's
// lifetime. Any nil callback is simply skipped.
type Handler struct {
	Open    func(c *Conn)
	Message func(c *Conn, mt MessageType, data []byte)
	Pong    func(c *Conn, data []byte)
	Close   func(c *Conn, code uint16, reason string)
}

var connSeq uint64

// Conn is one upgraded WebSocket connection: a hijacked net.Conn plus
// the fragmentation-reassembly state and write-side framing.
type Conn struct {
	id      uint64
	c       net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	handler Handler
	metrics *metrics.Collector

	writeMu sync.Mutex
	closed  int32

	fragging bool
	fragOp   Opcode
	fragBuf  *bytebufferpool.ByteBuffer
}

func newConn(c net.Conn, h Handler, m *metrics.Collector) *Conn {
	return &Conn{
		id:      atomic.AddUint64(&connSeq, 1),
		c:       c,
		br:      bufio.NewReaderSize(c, 4096),
		bw:      bufio.NewWriterSize(c, 4096),
		handler: h,
		metrics: m,
	}
}

// ID is a process-unique, monotonically increasing connection
// identifier.
func (c *Conn) ID() uint64 { return c.id }

// RemoteAddr is the underlying TCP peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.c.RemoteAddr() }

// Write sends data as a single unfragmented TEXT message.
func (c *Conn) Write(data []byte) error {
	return c.writeFrame(&Frame{FIN: true, Opcode: OpText, Payload: data})
}

// WriteBinary sends data as a single unfragmented BINARY message.
func (c *Conn) WriteBinary(data []byte) error {
	return c.writeFrame(&Frame{FIN: true, Opcode: OpBinary, Payload: data})
}

// Ping sends a PING control frame carrying data (at most 125 bytes).
func (c *Conn) Ping(data []byte) error {
	return c.writeFrame(&Frame{FIN: true, Opcode: OpPing, Payload: data})
}

// Close sends a CLOSE frame with the given status code and reason and
// marks the connection closed; the read loop tears down the socket
// once it observes the peer's own CLOSE or the connection errors out.
func (c *Conn) Close(code uint16, reason string) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.writeFrame(&Frame{FIN: true, Opcode: OpClose, Payload: encodeCloseReason(code, reason)})
}

func (c *Conn) writeFrame(fr *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.bw.Write(fr.Encode()); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.WSFramesSent.Inc()
	}
	return c.bw.Flush()
}

// serve runs the read loop until the peer closes, a protocol error
// occurs, or the connection is closed locally. It owns the socket for
// its entire lifetime: the caller (Server.Upgrade's hijack handler)
// never touches c.c again after calling this.
func (c *Conn) serve() {
	if c.metrics != nil {
		c.metrics.WSConnsActive.Inc()
	}
	defer func() {
		if c.metrics != nil {
			c.metrics.WSConnsActive.Dec()
		}
		if c.fragBuf != nil {
			bytebufferpool.Put(c.fragBuf)
		}
		_ = c.c.Close()
	}()

	if c.handler.Open != nil {
		c.handler.Open(c)
	}

	for {
		fr, err := readFrame(c.br)
		if err != nil {
			var perr *protoerr.Error
			if asWSError(err, &perr) {
				_ = c.writeFrame(&Frame{FIN: true, Opcode: OpClose, Payload: encodeCloseReason(perr.WSCloseCode, perr.Msg)})
			}
			c.fireClose(CloseProtocolError, "")
			return
		}
		if c.metrics != nil {
			c.metrics.WSFramesRecv.Inc()
		}

		switch fr.Opcode {
		case OpText:
			if err := c.beginOrDeliver(fr, TextMessage); err != nil {
				return
			}
		case OpBinary:
			if err := c.beginOrDeliver(fr, BinaryMessage); err != nil {
				return
			}
		case OpContinuation:
			if err := c.continueFragment(fr); err != nil {
				return
			}
		case OpPing:
			if err := c.writeFrame(&Frame{FIN: true, Opcode: OpPong, Payload: fr.Payload}); err != nil {
				return
			}
		case OpPong:
			if c.handler.Pong != nil {
				c.handler.Pong(c, fr.Payload)
			}
		case OpClose:
			code, reason := decodeCloseReason(fr.Payload)
			_ = c.writeFrame(&Frame{FIN: true, Opcode: OpClose, Payload: fr.Payload})
			c.fireClose(code, reason)
			return
		default:
			c.fireClose(CloseProtocolError, "unknown opcode")
			return
		}
	}
}

func (c *Conn) fireClose(code uint16, reason string) {
	if c.handler.Close != nil {
		c.handler.Close(c, code, reason)
	}
}

// beginOrDeliver handles a TEXT/BINARY frame: if it is unfragmented
// (FIN set) the message is delivered immediately, otherwise a new
// fragmented message begins and subsequent CONTINUATION frames
// accumulate into fragBuf until FIN, per RFC 6455 §5.4.
func (c *Conn) beginOrDeliver(fr *Frame, mt MessageType) error {
	if fr.FIN {
		if c.handler.Message != nil {
			c.handler.Message(c, mt, fr.Payload)
		}
		return nil
	}

	if c.fragging {
		c.fireClose(CloseProtocolError, "new message started before previous fragment finished")
		return errFragmentInProgress
	}

	c.fragging = true
	c.fragOp = fr.Opcode
	if c.fragBuf == nil {
		c.fragBuf = bytebufferpool.Get()
	}
	c.fragBuf.Reset()
	_, _ = c.fragBuf.Write(fr.Payload)
	return nil
}

func (c *Conn) continueFragment(fr *Frame) error {
	if !c.fragging {
		c.fireClose(CloseProtocolError, "CONTINUATION without a fragmented message")
		return errNoFragmentInProgress
	}

	_, _ = c.fragBuf.Write(fr.Payload)

	if !fr.FIN {
		return nil
	}

	mt := TextMessage
	if c.fragOp == OpBinary {
		mt = BinaryMessage
	}
	payload := append([]byte(nil), c.fragBuf.B...)
	c.fragBuf.Reset()
	c.fragging = false

	if c.handler.Message != nil {
		c.handler.Message(c, mt, payload)
	}
	return nil
}

var (
	errFragmentInProgress   = protoerr.New(protoerr.Protocol, "fragmented message already in progress")
	errNoFragmentInProgress = protoerr.New(protoerr.Protocol, "no fragmented message in progress")
)

func asWSError(err error, target **protoerr.Error) bool {
	e, ok := err.(*protoerr.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}

// readFrame reads one complete frame from br, blocking until it
// arrives. Unlike DecodeFrame (used for buffer-level round-trip
// tests), a short read here is genuinely EOF/connection-error, not a
// "not enough data yet" condition, since br is a live, buffered
// socket reader.
func readFrame(br *bufio.Reader) (*Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0]&0x70 != 0 {
		return nil, errRSVSet
	}

	fr := &Frame{
		FIN:    hdr[0]&0x80 != 0,
		Opcode: Opcode(hdr[0] & 0x0f),
		Masked: hdr[1]&0x80 != 0,
	}
	if !fr.Masked {
		return nil, errUnmaskedFrame
	}

	payloadLen := uint64(hdr[1] & 0x7f)
	switch payloadLen {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(br, ext[:]); err != nil {
			return nil, err
		}
		payloadLen = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(br, ext[:]); err != nil {
			return nil, err
		}
		payloadLen = binary.BigEndian.Uint64(ext[:])
		if payloadLen&(1<<63) != 0 {
			return nil, errLengthMSBSet
		}
	}

	if err := checkControlFrame(fr.FIN, fr.Opcode, payloadLen); err != nil {
		return nil, err
	}

	if fr.Masked {
		if _, err := io.ReadFull(br, fr.MaskKey[:]); err != nil {
			return nil, err
		}
	}

	fr.Payload = make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(br, fr.Payload); err != nil {
			return nil, err
		}
	}
	if fr.Masked {
		unmask(fr.Payload, fr.MaskKey)
	}

	return fr, nil
}
