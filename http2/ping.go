package http2

import "sync"

// Ping is the PING frame body, RFC 7540 §6.7: always exactly 8
// opaque bytes, echoed back verbatim with FlagAck set.
type Ping struct {
	data [8]byte
}

var pingPool = sync.Pool{New: func() interface{} { return &Ping{} }}

func (p *Ping) Type() FrameType { return FramePing }
func (p *Ping) Reset()          { p.data = [8]byte{} }
func (p *Ping) Data() [8]byte   { return p.data }
func (p *Ping) SetData(b [8]byte) { p.data = b }

func (p *Ping) Deserialize(fh *FrameHeader) error {
	if fh.stream != 0 {
		return newProtocolError("PING frame with non-zero stream id")
	}
	if len(fh.payload) != 8 {
		return newFrameSizeError("PING frame must be 8 bytes")
	}
	copy(p.data[:], fh.payload)
	return nil
}

func (p *Ping) Serialize(fh *FrameHeader, dst []byte) []byte {
	return append(dst, p.data[:]...)
}
