// Package websocket implements the RFC 6455 handshake and frame
// pipeline: masking/unmasking, fragmentation and reassembly, and the
// control-frame (ping/pong/close) responses, on top of a hijacked
// fasthttp connection.
package websocket

import (
	"encoding/binary"

	"github.com/domsolutions/multiproto/protoerr"
)

// Opcode identifies a frame's payload interpretation, RFC 6455 §5.2.
type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// IsControl reports whether op is a control opcode (>= 0x8): control
// frames may not be fragmented and are capped at 125 bytes of payload.
func (op Opcode) IsControl() bool { return op&0x08 != 0 }

// Close status codes, RFC 6455 §7.4.1.
const (
	CloseNormal          uint16 = 1000
	CloseGoingAway       uint16 = 1001
	CloseProtocolError   uint16 = 1002
	CloseUnsupportedData uint16 = 1003
	CloseInvalidPayload  uint16 = 1007
	ClosePolicyViolation uint16 = 1008
	CloseMessageTooBig   uint16 = 1009
	CloseInternalError   uint16 = 1011
)

// Frame is one decoded (or to-be-encoded) WebSocket frame.
type Frame struct {
	FIN     bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

var (
	errRSVSet            = protoerr.WSClose(protoerr.Protocol, CloseProtocolError, "RSV bits set without a negotiated extension")
	errControlFragmented = protoerr.WSClose(protoerr.Protocol, CloseProtocolError, "control frame must not be fragmented")
	errControlTooLarge   = protoerr.WSClose(protoerr.Protocol, CloseProtocolError, "control frame payload exceeds 125 bytes")
	errLengthMSBSet      = protoerr.WSClose(protoerr.Protocol, CloseProtocolError, "64-bit payload length MSB must be zero")
	errUnmaskedFrame     = protoerr.WSClose(protoerr.Protocol, CloseProtocolError, "client-to-server frame must be masked")
)

func checkControlFrame(fin bool, opcode Opcode, payloadLen uint64) error {
	if !opcode.IsControl() {
		return nil
	}
	if !fin {
		return errControlFragmented
	}
	if payloadLen > 125 {
		return errControlTooLarge
	}
	return nil
}

// DecodeFrame decodes one frame from the front of buf. It returns
// (nil, 0, nil) when buf does not yet hold a complete frame — a short
// buffer is not an error, so callers can feed it growing reads from a
// non-blocking source without special-casing EOF.
func DecodeFrame(buf []byte) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}

	b0, b1 := buf[0], buf[1]
	if b0&0x70 != 0 {
		return nil, 0, errRSVSet
	}

	fr := &Frame{
		FIN:    b0&0x80 != 0,
		Opcode: Opcode(b0 & 0x0f),
		Masked: b1&0x80 != 0,
	}
	if !fr.Masked {
		return nil, 0, errUnmaskedFrame
	}

	payloadLen := uint64(b1 & 0x7f)
	i := 2

	switch payloadLen {
	case 126:
		if len(buf) < i+2 {
			return nil, 0, nil
		}
		payloadLen = uint64(binary.BigEndian.Uint16(buf[i:]))
		i += 2
	case 127:
		if len(buf) < i+8 {
			return nil, 0, nil
		}
		payloadLen = binary.BigEndian.Uint64(buf[i:])
		if payloadLen&(1<<63) != 0 {
			return nil, 0, errLengthMSBSet
		}
		i += 8
	}

	if err := checkControlFrame(fr.FIN, fr.Opcode, payloadLen); err != nil {
		return nil, 0, err
	}

	if fr.Masked {
		if len(buf) < i+4 {
			return nil, 0, nil
		}
		copy(fr.MaskKey[:], buf[i:i+4])
		i += 4
	}

	if uint64(len(buf)-i) < payloadLen {
		return nil, 0, nil
	}

	fr.Payload = append([]byte(nil), buf[i:i+int(payloadLen)]...)
	i += int(payloadLen)

	if fr.Masked {
		unmask(fr.Payload, fr.MaskKey)
	}

	return fr, i, nil
}

func unmask(payload []byte, key [4]byte) {
	for i := range payload {
		payload[i] ^= key[i%4]
	}
}

// Encode serializes fr as a complete wire frame, choosing the
// smallest legal payload-length encoding.
func (fr *Frame) Encode() []byte {
	var b0 byte
	if fr.FIN {
		b0 |= 0x80
	}
	b0 |= byte(fr.Opcode) & 0x0f

	n := len(fr.Payload)
	dst := make([]byte, 0, n+14)
	dst = append(dst, b0)

	var b1 byte
	if fr.Masked {
		b1 |= 0x80
	}

	switch {
	case n <= 125:
		dst = append(dst, b1|byte(n))
	case n <= 0xffff:
		dst = append(dst, b1|126)
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(n))
		dst = append(dst, ext[:]...)
	default:
		dst = append(dst, b1|127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(n))
		dst = append(dst, ext[:]...)
	}

	if fr.Masked {
		dst = append(dst, fr.MaskKey[:]...)
		start := len(dst)
		dst = append(dst, fr.Payload...)
		unmask(dst[start:], fr.MaskKey)
	} else {
		dst = append(dst, fr.Payload...)
	}

	return dst
}

// encodeCloseReason builds a CLOSE frame payload: a 2-byte status
// code followed by an optional UTF-8 reason, RFC 6455 §5.5.1.
func encodeCloseReason(code uint16, reason string) []byte {
	b := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(b, code)
	copy(b[2:], reason)
	return b
}

// decodeCloseReason is encodeCloseReason's inverse; a payload shorter
// than 2 bytes yields the default CloseNormal code with no reason.
func decodeCloseReason(payload []byte) (uint16, string) {
	if len(payload) < 2 {
		return CloseNormal, ""
	}
	return binary.BigEndian.Uint16(payload), string(payload[2:])
}
