package http2

import (
	"sync"

	"github.com/domsolutions/multiproto/http2/http2utils"
)

// GoAway is the GOAWAY frame body, RFC 7540 §6.8.
type GoAway struct {
	lastStreamID uint32
	code         uint32
	debug        []byte
}

var goAwayPool = sync.Pool{New: func() interface{} { return &GoAway{} }}

func (g *GoAway) Type() FrameType { return FrameGoAway }

func (g *GoAway) Reset() {
	g.lastStreamID = 0
	g.code = 0
	g.debug = g.debug[:0]
}

func (g *GoAway) LastStreamID() uint32       { return g.lastStreamID }
func (g *GoAway) SetLastStreamID(id uint32)  { g.lastStreamID = id }
func (g *GoAway) Code() uint32               { return g.code }
func (g *GoAway) SetCode(c uint32)           { g.code = c }
func (g *GoAway) SetDebug(b []byte)          { g.debug = append(g.debug[:0], b...) }
func (g *GoAway) Debug() []byte              { return g.debug }

func (g *GoAway) Deserialize(fh *FrameHeader) error {
	if fh.stream != 0 {
		return newProtocolError("GOAWAY frame with non-zero stream id")
	}
	if len(fh.payload) < 8 {
		return newFrameSizeError("GOAWAY frame too short")
	}
	g.lastStreamID = http2utils.BytesToUint32(fh.payload[:4]) &^ (1 << 31)
	g.code = http2utils.BytesToUint32(fh.payload[4:8])
	g.debug = append(g.debug[:0], fh.payload[8:]...)
	return nil
}

func (g *GoAway) Serialize(fh *FrameHeader, dst []byte) []byte {
	dst = http2utils.AppendUint32Bytes(dst, g.lastStreamID&^(1<<31))
	dst = http2utils.AppendUint32Bytes(dst, g.code)
	return append(dst, g.debug...)
}
