package http2

import (
	"sync"

	"github.com/domsolutions/multiproto/http2/http2utils"
)

// WindowUpdate is the WINDOW_UPDATE frame body, RFC 7540 §6.9.
type WindowUpdate struct {
	increment uint32
}

var windowUpdatePool = sync.Pool{New: func() interface{} { return &WindowUpdate{} }}

func (w *WindowUpdate) Type() FrameType         { return FrameWindowUpdate }
func (w *WindowUpdate) Reset()                  { w.increment = 0 }
func (w *WindowUpdate) Increment() uint32       { return w.increment }
func (w *WindowUpdate) SetIncrement(v uint32)   { w.increment = v }

func (w *WindowUpdate) Deserialize(fh *FrameHeader) error {
	if len(fh.payload) != 4 {
		return newFrameSizeError("WINDOW_UPDATE frame must be 4 bytes")
	}
	w.increment = http2utils.BytesToUint32(fh.payload) &^ (1 << 31)
	if w.increment == 0 {
		return newProtocolError("WINDOW_UPDATE increment must be non-zero")
	}
	return nil
}

func (w *WindowUpdate) Serialize(fh *FrameHeader, dst []byte) []byte {
	return http2utils.AppendUint32Bytes(dst, w.increment&^(1<<31))
}
