package http2

import (
	"sync"

	"github.com/domsolutions/multiproto/http2/http2utils"
)

// Data is the DATA frame body, RFC 7540 §6.1.
type Data struct {
	payload []byte
	pad     uint8
	endStream bool
}

var dataPool = sync.Pool{New: func() interface{} { return &Data{} }}

func (d *Data) Type() FrameType { return FrameData }

func (d *Data) Reset() {
	d.payload = d.payload[:0]
	d.pad = 0
	d.endStream = false
}

func (d *Data) SetPayload(b []byte)  { d.payload = append(d.payload[:0], b...) }
func (d *Data) Payload() []byte      { return d.payload }
func (d *Data) SetEndStream(v bool)  { d.endStream = v }
func (d *Data) EndStream() bool      { return d.endStream }

func (d *Data) Deserialize(fh *FrameHeader) error {
	if fh.stream == 0 {
		return newProtocolError("DATA frame on stream 0")
	}
	d.endStream = fh.flags.Has(FlagEndStream)

	payload, _, ok := http2utils.CutPadding(fh.payload, fh.flags.Has(FlagPadded))
	if !ok {
		return newProtocolError("DATA frame padding exceeds frame length")
	}
	d.payload = append(d.payload[:0], payload...)
	return nil
}

func (d *Data) Serialize(fh *FrameHeader, dst []byte) []byte {
	if d.endStream {
		fh.AddFlag(FlagEndStream)
	}
	return append(dst, d.payload...)
}
