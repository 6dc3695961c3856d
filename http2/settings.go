package http2

import (
	"sync"

	"github.com/domsolutions/multiproto/http2/http2utils"
)

// Settings identifiers, RFC 7540 §6.5.2.
const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
)

// Settings is both the SETTINGS frame body and the convenient view
// onto one side's advertised connection parameters.
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32

	// raw holds the pairs as seen on the wire, in arrival order, so a
	// server-to-server pass-through (or a test) can inspect exactly
	// which settings were sent rather than only their resolved value.
	raw []settingPair
}

type settingPair struct {
	id  uint16
	val uint32
}

func defaultSettings() *Settings {
	return &Settings{
		HeaderTableSize:      DefaultHeaderTableSize,
		EnablePush:           true,
		MaxConcurrentStreams: DefaultMaxConcurrentStreams,
		InitialWindowSize:    DefaultWindowSize,
		MaxFrameSize:         DefaultMaxFrameSize,
		MaxHeaderListSize:    1 << 20,
	}
}

var settingsPool = sync.Pool{
	New: func() interface{} { return defaultSettings() },
}

func acquireSettings() *Settings {
	return settingsPool.Get().(*Settings)
}

func releaseSettings(s *Settings) {
	*s = *defaultSettings()
	settingsPool.Put(s)
}

func (s *Settings) Type() FrameType { return FrameSettings }

func (s *Settings) Reset() {
	*s = *defaultSettings()
}

// Deserialize decodes the wire payload (a multiple-of-6-bytes list of
// id/value pairs) and applies each to the receiver's fields.
func (s *Settings) Deserialize(fh *FrameHeader) error {
	if fh.stream != 0 {
		return newProtocolError("SETTINGS frame with non-zero stream id")
	}
	if fh.flags.Has(FlagAck) {
		if len(fh.payload) != 0 {
			return newFrameSizeError("SETTINGS ACK must be empty")
		}
		return nil
	}
	if len(fh.payload)%6 != 0 {
		return newFrameSizeError("SETTINGS payload not a multiple of 6")
	}

	s.raw = s.raw[:0]
	p := fh.payload
	for len(p) > 0 {
		id := uint16(p[0])<<8 | uint16(p[1])
		val := http2utils.BytesToUint32(p[2:6])
		p = p[6:]

		s.raw = append(s.raw, settingPair{id, val})
		s.apply(id, val)
	}
	return nil
}

func (s *Settings) apply(id uint16, val uint32) {
	switch id {
	case SettingHeaderTableSize:
		s.HeaderTableSize = val
	case SettingEnablePush:
		s.EnablePush = val == 1
	case SettingMaxConcurrentStreams:
		s.MaxConcurrentStreams = val
	case SettingInitialWindowSize:
		s.InitialWindowSize = val
	case SettingMaxFrameSize:
		s.MaxFrameSize = val
	case SettingMaxHeaderListSize:
		s.MaxHeaderListSize = val
	}
	// Unknown settings identifiers are ignored per RFC 7540 §6.5.2.
}

// Serialize emits the non-default fields as id/value pairs. When the
// caller has set FlagAck on fh the payload is empty.
func (s *Settings) Serialize(fh *FrameHeader, dst []byte) []byte {
	if fh.flags.Has(FlagAck) {
		return dst
	}

	d := defaultSettings()
	if s.HeaderTableSize != d.HeaderTableSize {
		dst = appendSetting(dst, SettingHeaderTableSize, s.HeaderTableSize)
	}
	if s.EnablePush != d.EnablePush {
		v := uint32(0)
		if s.EnablePush {
			v = 1
		}
		dst = appendSetting(dst, SettingEnablePush, v)
	}
	if s.MaxConcurrentStreams != d.MaxConcurrentStreams {
		dst = appendSetting(dst, SettingMaxConcurrentStreams, s.MaxConcurrentStreams)
	}
	if s.InitialWindowSize != d.InitialWindowSize {
		dst = appendSetting(dst, SettingInitialWindowSize, s.InitialWindowSize)
	}
	if s.MaxFrameSize != d.MaxFrameSize {
		dst = appendSetting(dst, SettingMaxFrameSize, s.MaxFrameSize)
	}
	if s.MaxHeaderListSize != d.MaxHeaderListSize {
		dst = appendSetting(dst, SettingMaxHeaderListSize, s.MaxHeaderListSize)
	}
	return dst
}

func appendSetting(dst []byte, id uint16, val uint32) []byte {
	dst = append(dst, byte(id>>8), byte(id))
	return http2utils.AppendUint32Bytes(dst, val)
}
