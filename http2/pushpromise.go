package http2

import (
	"sync"

	"github.com/domsolutions/multiproto/http2/http2utils"
)

// PushPromise is the PUSH_PROMISE frame body, RFC 7540 §6.6. Server
// push is parsed/serialized for protocol completeness but the
// server-side engine never emits one on its own (EnablePush from the
// client SETTINGS is honored by refusing to push, matching the
// "no per-URL routing DSL" non-goal: there is no push-manifest
// concept above this layer to drive it).
type PushPromise struct {
	promisedStreamID uint32
	headerBlock       []byte
	endHeaders        bool
}

var pushPromisePool = sync.Pool{New: func() interface{} { return &PushPromise{} }}

func (pp *PushPromise) Type() FrameType { return FramePushPromise }

func (pp *PushPromise) Reset() {
	pp.promisedStreamID = 0
	pp.headerBlock = pp.headerBlock[:0]
	pp.endHeaders = false
}

func (pp *PushPromise) PromisedStreamID() uint32 { return pp.promisedStreamID }
func (pp *PushPromise) HeaderBlock() []byte      { return pp.headerBlock }
func (pp *PushPromise) EndHeaders() bool         { return pp.endHeaders }

func (pp *PushPromise) Deserialize(fh *FrameHeader) error {
	if fh.stream == 0 {
		return newProtocolError("PUSH_PROMISE frame on stream 0")
	}
	payload, _, ok := http2utils.CutPadding(fh.payload, fh.flags.Has(FlagPadded))
	if !ok || len(payload) < 4 {
		return newFrameSizeError("PUSH_PROMISE frame truncated")
	}
	pp.promisedStreamID = http2utils.BytesToUint32(payload[:4]) &^ (1 << 31)
	pp.headerBlock = append(pp.headerBlock[:0], payload[4:]...)
	pp.endHeaders = fh.flags.Has(FlagEndHeaders)
	return nil
}

func (pp *PushPromise) Serialize(fh *FrameHeader, dst []byte) []byte {
	if pp.endHeaders {
		fh.AddFlag(FlagEndHeaders)
	}
	dst = http2utils.AppendUint32Bytes(dst, pp.promisedStreamID&^(1<<31))
	return append(dst, pp.headerBlock...)
}
