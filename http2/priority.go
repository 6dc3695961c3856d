package http2

import "sync"

// Priority is the PRIORITY frame body, RFC 7540 §6.3. Priority
// signaling is accepted but not acted upon for scheduling (the write
// loop writes frames in the order they are queued); it is still parsed and validated
// so a misbehaving client gets a PROTOCOL_ERROR where required.
type Priority struct {
	exclusive bool
	streamDep uint32
	weight    uint8
}

var priorityPool = sync.Pool{New: func() interface{} { return &Priority{} }}

func (p *Priority) Type() FrameType { return FramePriority }

func (p *Priority) Reset() {
	p.exclusive = false
	p.streamDep = 0
	p.weight = 0
}

func (p *Priority) Deserialize(fh *FrameHeader) error {
	if fh.stream == 0 {
		return newProtocolError("PRIORITY frame on stream 0")
	}
	if len(fh.payload) != 5 {
		return newFrameSizeError("PRIORITY frame must be 5 bytes")
	}
	raw := fh.payload[:4]
	p.exclusive = raw[0]&0x80 != 0
	p.streamDep = (uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])) &^ (1 << 31)
	p.weight = fh.payload[4]
	return nil
}

func (p *Priority) Serialize(fh *FrameHeader, dst []byte) []byte {
	var raw [5]byte
	v := p.streamDep
	if p.exclusive {
		v |= 1 << 31
	}
	raw[0] = byte(v >> 24)
	raw[1] = byte(v >> 16)
	raw[2] = byte(v >> 8)
	raw[3] = byte(v)
	raw[4] = p.weight
	return append(dst, raw[:]...)
}
