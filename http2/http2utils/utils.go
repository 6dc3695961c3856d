// Package http2utils holds the small byte-fiddling helpers shared by
// every HTTP/2 frame type: 24/32-bit big-endian conversions and
// padding helpers.
package http2utils

import "github.com/valyala/fastrand"

// Uint24ToBytes writes the low 24 bits of n into dst (len(dst) >= 3),
// big-endian.
func Uint24ToBytes(dst []byte, n uint32) {
	_ = dst[2]
	dst[0] = byte(n >> 16)
	dst[1] = byte(n >> 8)
	dst[2] = byte(n)
}

// BytesToUint24 reads a 24-bit big-endian integer from b (len(b) >= 3).
func BytesToUint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// Uint32ToBytes writes n into dst (len(dst) >= 4), big-endian.
func Uint32ToBytes(dst []byte, n uint32) {
	_ = dst[3]
	dst[0] = byte(n >> 24)
	dst[1] = byte(n >> 16)
	dst[2] = byte(n >> 8)
	dst[3] = byte(n)
}

// AppendUint32Bytes appends the big-endian encoding of n to dst.
func AppendUint32Bytes(dst []byte, n uint32) []byte {
	return append(dst, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

// BytesToUint32 reads a 32-bit big-endian integer from b (len(b) >= 4).
// The reserved MSB (used by stream ids and WINDOW_UPDATE increments)
// is masked off by the caller where relevant, not here.
func BytesToUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// EqualsFold reports whether a and b are equal ignoring ASCII case,
// without allocating — used for the handful of case-insensitive
// header comparisons the HTTP/2 pseudo-header mapping needs.
func EqualsFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// CutPadding strips and returns (payload, padLength, ok) from a frame
// payload that carries the PADDED flag: the first byte is the pad
// length, followed by payload, followed by that many zero pad bytes.
func CutPadding(payload []byte, padded bool) ([]byte, uint8, bool) {
	if !padded {
		return payload, 0, true
	}
	if len(payload) < 1 {
		return nil, 0, false
	}
	padLen := payload[0]
	payload = payload[1:]
	if int(padLen) > len(payload) {
		return nil, 0, false
	}
	return payload[:len(payload)-int(padLen)], padLen, true
}

// AddPadding appends a random amount of padding (bounded by max) to
// dst, per RFC 7540 §6.1's "obfuscate the length of messages" note,
// returning the new slice and the PADDED flag to set.
func AddPadding(dst []byte, body []byte, maxPad int) ([]byte, bool) {
	if maxPad <= 0 {
		return append(dst, body...), false
	}

	padLen := int(fastrand.Uint32n(uint32(maxPad)))
	if padLen == 0 {
		return append(dst, body...), false
	}

	dst = append(dst, byte(padLen))
	dst = append(dst, body...)
	for i := 0; i < padLen; i++ {
		dst = append(dst, 0)
	}
	return dst, true
}
