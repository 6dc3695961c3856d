package http2

import (
	"sync"

	"github.com/domsolutions/multiproto/http2/http2utils"
)

// RstStream is the RST_STREAM frame body, RFC 7540 §6.4.
type RstStream struct {
	code uint32
}

var rstStreamPool = sync.Pool{New: func() interface{} { return &RstStream{} }}

func (r *RstStream) Type() FrameType   { return FrameRstStream }
func (r *RstStream) Reset()            { r.code = 0 }
func (r *RstStream) Code() uint32      { return r.code }
func (r *RstStream) SetCode(c uint32)  { r.code = c }

func (r *RstStream) Deserialize(fh *FrameHeader) error {
	if fh.stream == 0 {
		return newProtocolError("RST_STREAM frame on stream 0")
	}
	if len(fh.payload) != 4 {
		return newFrameSizeError("RST_STREAM frame must be 4 bytes")
	}
	r.code = http2utils.BytesToUint32(fh.payload)
	return nil
}

func (r *RstStream) Serialize(fh *FrameHeader, dst []byte) []byte {
	return http2utils.AppendUint32Bytes(dst, r.code)
}
