package http2

import (
	"sync"

	"github.com/domsolutions/multiproto/http2/http2utils"
)

// Headers is the HEADERS frame body, RFC 7540 §6.2. The header block
// fragment itself is opaque bytes here; HPACK decoding happens once
// the full block (across any CONTINUATION frames) has been
// assembled by the connection engine.
type Headers struct {
	headerBlock []byte
	pad         uint8
	endStream   bool
	endHeaders  bool

	hasPriority   bool
	streamDep     uint32
	exclusive     bool
	weight        uint8
}

var headersPool = sync.Pool{New: func() interface{} { return &Headers{} }}

func (h *Headers) Type() FrameType { return FrameHeaders }

func (h *Headers) Reset() {
	h.headerBlock = h.headerBlock[:0]
	h.pad = 0
	h.endStream = false
	h.endHeaders = false
	h.hasPriority = false
	h.streamDep = 0
	h.exclusive = false
	h.weight = 0
}

func (h *Headers) HeaderBlock() []byte       { return h.headerBlock }
func (h *Headers) SetHeaderBlock(b []byte)   { h.headerBlock = append(h.headerBlock[:0], b...) }
func (h *Headers) AppendHeaderBlock(b []byte) { h.headerBlock = append(h.headerBlock, b...) }
func (h *Headers) EndStream() bool           { return h.endStream }
func (h *Headers) SetEndStream(v bool)       { h.endStream = v }
func (h *Headers) EndHeaders() bool          { return h.endHeaders }
func (h *Headers) SetEndHeaders(v bool)      { h.endHeaders = v }

func (h *Headers) Deserialize(fh *FrameHeader) error {
	if fh.stream == 0 {
		return newProtocolError("HEADERS frame on stream 0")
	}
	h.endStream = fh.flags.Has(FlagEndStream)
	h.endHeaders = fh.flags.Has(FlagEndHeaders)

	payload, _, ok := http2utils.CutPadding(fh.payload, fh.flags.Has(FlagPadded))
	if !ok {
		return newProtocolError("HEADERS frame padding exceeds frame length")
	}

	if fh.flags.Has(FlagPriority) {
		if len(payload) < 5 {
			return newFrameSizeError("HEADERS PRIORITY section truncated")
		}
		raw := payload[:4]
		h.exclusive = raw[0]&0x80 != 0
		h.streamDep = (uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])) &^ (1 << 31)
		h.weight = payload[4]
		h.hasPriority = true
		payload = payload[5:]
	}

	h.headerBlock = append(h.headerBlock[:0], payload...)
	return nil
}

func (h *Headers) Serialize(fh *FrameHeader, dst []byte) []byte {
	if h.endStream {
		fh.AddFlag(FlagEndStream)
	}
	if h.endHeaders {
		fh.AddFlag(FlagEndHeaders)
	}
	return append(dst, h.headerBlock...)
}
