package http2

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/domsolutions/multiproto/http2/http2utils"
)

// FrameHeader is the 9-byte frame header plus the decoded Frame body
// it carries. It is pooled so a connection's read loop never
// allocates per-frame once warmed up.
type FrameHeader struct {
	length int
	kind   FrameType
	flags  FrameFlags
	stream uint32
	maxLen uint32

	rawHeader [9]byte
	payload   []byte
	fr        Frame
}

var frameHeaderPool = sync.Pool{
	New: func() interface{} { return &FrameHeader{maxLen: DefaultMaxFrameSize} },
}

// AcquireFrameHeader returns a pooled, reset FrameHeader.
func AcquireFrameHeader() *FrameHeader {
	fh := frameHeaderPool.Get().(*FrameHeader)
	return fh
}

// ReleaseFrameHeader returns fh to the pool. The contained Frame body,
// if any, is released too via its own type pool.
func ReleaseFrameHeader(fh *FrameHeader) {
	fh.reset()
	frameHeaderPool.Put(fh)
}

func (fh *FrameHeader) reset() {
	if fh.fr != nil {
		ReleaseFrame(fh.fr)
		fh.fr = nil
	}
	fh.length = 0
	fh.kind = 0
	fh.flags = 0
	fh.stream = 0
	fh.payload = fh.payload[:0]
}

func (fh *FrameHeader) Type() FrameType    { return fh.kind }
func (fh *FrameHeader) Flags() FrameFlags  { return fh.flags }
func (fh *FrameHeader) Stream() uint32     { return fh.stream }
func (fh *FrameHeader) Len() int           { return fh.length }
func (fh *FrameHeader) Body() Frame        { return fh.fr }
func (fh *FrameHeader) SetStream(id uint32) { fh.stream = id }
func (fh *FrameHeader) SetFlags(f FrameFlags) { fh.flags = f }
func (fh *FrameHeader) AddFlag(f FrameFlags)  { fh.flags |= f }

// SetBody attaches fr as this header's frame body, setting kind to
// match.
func (fh *FrameHeader) SetBody(fr Frame) {
	fh.fr = fr
	fh.kind = fr.Type()
}

var (
	errPrefaceMismatch = errors.New("http2: invalid connection preface")
)

// ReadFrameFrom reads one frame (header + body) from br, enforcing
// the given max frame length (SETTINGS_MAX_FRAME_SIZE the local side
// advertised).
func ReadFrameFrom(br *bufio.Reader, maxLen uint32) (*FrameHeader, error) {
	fh := AcquireFrameHeader()
	fh.maxLen = maxLen

	if err := fh.readFrom(br); err != nil {
		ReleaseFrameHeader(fh)
		return nil, err
	}
	return fh, nil
}

func (fh *FrameHeader) readFrom(br *bufio.Reader) error {
	if _, err := io.ReadFull(br, fh.rawHeader[:]); err != nil {
		return err
	}

	fh.length = int(http2utils.BytesToUint24(fh.rawHeader[:3]))
	fh.kind = FrameType(fh.rawHeader[3])
	fh.flags = FrameFlags(fh.rawHeader[4])
	fh.stream = http2utils.BytesToUint32(fh.rawHeader[5:9]) &^ (1 << 31)

	if fh.length > int(fh.maxLen) {
		return newFrameSizeError(fmt.Sprintf("frame length %d exceeds max %d", fh.length, fh.maxLen))
	}

	if cap(fh.payload) < fh.length {
		fh.payload = make([]byte, fh.length)
	} else {
		fh.payload = fh.payload[:fh.length]
	}

	if fh.length > 0 {
		if _, err := io.ReadFull(br, fh.payload); err != nil {
			return err
		}
	}

	fr := fh.fr
	if fr == nil || fr.Type() != fh.kind {
		if fr != nil {
			ReleaseFrame(fr)
		}
		fr = AcquireFrame(fh.kind)
		fh.fr = fr
	} else {
		fr.Reset()
	}

	return fh.fr.Deserialize(fh)
}

// WriteTo serializes fh (header + body) onto w.
func (fh *FrameHeader) WriteTo(w io.Writer, scratch []byte) error {
	scratch = scratch[:0]
	scratch = fh.fr.Serialize(fh, scratch)

	http2utils.Uint24ToBytes(fh.rawHeader[:3], uint32(len(scratch)))
	fh.rawHeader[3] = byte(fh.kind)
	fh.rawHeader[4] = byte(fh.flags)
	http2utils.Uint32ToBytes(fh.rawHeader[5:9], fh.stream&^(1<<31))

	if _, err := w.Write(fh.rawHeader[:]); err != nil {
		return err
	}
	if len(scratch) > 0 {
		if _, err := w.Write(scratch); err != nil {
			return err
		}
	}
	return nil
}

// ReadPreface consumes and validates the 24-byte HTTP/2 client
// connection preface from br.
func ReadPreface(br *bufio.Reader) error {
	buf := make([]byte, len(FramePreface))
	if _, err := io.ReadFull(br, buf); err != nil {
		return err
	}
	if string(buf) != FramePreface {
		return errPrefaceMismatch
	}
	return nil
}

// PeekPreface reports whether the next 24 bytes available on br equal
// the HTTP/2 client preface, without consuming them. Used by the
// connection dispatcher's protocol-detection sniff.
func PeekPreface(br *bufio.Reader) (bool, error) {
	b, err := br.Peek(len(FramePreface))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, bufio.ErrBufferFull) {
			return false, nil
		}
		return false, err
	}
	return string(b) == FramePreface, nil
}
