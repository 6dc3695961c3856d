package http2

import "sync"

// Continuation is the CONTINUATION frame body, RFC 7540 §6.10: a tail
// of a header block that did not fit in its HEADERS/PUSH_PROMISE
// frame.
type Continuation struct {
	headerBlock []byte
	endHeaders  bool
}

var continuationPool = sync.Pool{New: func() interface{} { return &Continuation{} }}

func (c *Continuation) Type() FrameType      { return FrameContinuation }
func (c *Continuation) Reset()               { c.headerBlock = c.headerBlock[:0]; c.endHeaders = false }
func (c *Continuation) HeaderBlock() []byte  { return c.headerBlock }
func (c *Continuation) EndHeaders() bool     { return c.endHeaders }
func (c *Continuation) SetEndHeaders(v bool) { c.endHeaders = v }

func (c *Continuation) Deserialize(fh *FrameHeader) error {
	if fh.stream == 0 {
		return newProtocolError("CONTINUATION frame on stream 0")
	}
	c.endHeaders = fh.flags.Has(FlagEndHeaders)
	c.headerBlock = append(c.headerBlock[:0], fh.payload...)
	return nil
}

func (c *Continuation) Serialize(fh *FrameHeader, dst []byte) []byte {
	if c.endHeaders {
		fh.AddFlag(FlagEndHeaders)
	}
	return append(dst, c.headerBlock...)
}
