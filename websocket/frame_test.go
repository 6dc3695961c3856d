package websocket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []*Frame{
		{FIN: true, Opcode: OpText, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}, Payload: []byte("hello")},
		{FIN: true, Opcode: OpBinary, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}, Payload: make([]byte, 200)},
		{FIN: true, Opcode: OpBinary, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}, Payload: make([]byte, 70000)},
		{FIN: false, Opcode: OpText, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}, Payload: []byte("frag")},
		{FIN: true, Opcode: OpPing, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}, Payload: []byte("ping")},
		{FIN: true, Opcode: OpClose, Masked: true, MaskKey: [4]byte{1, 2, 3, 4}, Payload: encodeCloseReason(CloseNormal, "bye")},
	}

	for _, want := range cases {
		encoded := want.Encode()
		got, n, err := DecodeFrame(encoded)
		require.NoError(t, err)
		require.Equal(t, len(encoded), n)
		require.Equal(t, want.FIN, got.FIN)
		require.Equal(t, want.Opcode, got.Opcode)
		require.Equal(t, want.Payload, got.Payload)
	}
}

func TestDecodeFrameShortBuffer(t *testing.T) {
	fr, n, err := DecodeFrame([]byte{0x81})
	require.NoError(t, err)
	require.Nil(t, fr)
	require.Equal(t, 0, n)
}

func TestDecodeFrameRejectsRSVBits(t *testing.T) {
	_, _, err := DecodeFrame([]byte{0x81 | 0x40, 0x00})
	require.Error(t, err)
}

func TestDecodeFrameRejectsFragmentedControl(t *testing.T) {
	// PING (0x9) without FIN set, masked (as any client frame must be).
	_, _, err := DecodeFrame([]byte{0x09, 0x80})
	require.Error(t, err)
}

func TestDecodeFrameRejectsUnmasked(t *testing.T) {
	// TEXT frame with the MASK bit clear, as a client must never send.
	_, _, err := DecodeFrame([]byte{0x81, 0x00})
	require.Error(t, err)
}

func TestDecodeFrameUnmasksPayload(t *testing.T) {
	fr := &Frame{FIN: true, Opcode: OpText, Masked: true, MaskKey: [4]byte{0xaa, 0xbb, 0xcc, 0xdd}, Payload: []byte("secret")}
	encoded := fr.Encode()

	got, _, err := DecodeFrame(encoded)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), got.Payload)
}

func TestExtendedLengthEncoding(t *testing.T) {
	small := (&Frame{FIN: true, Opcode: OpBinary, Payload: make([]byte, 10)}).Encode()
	require.Equal(t, byte(10), small[1]&0x7f)

	medium := (&Frame{FIN: true, Opcode: OpBinary, Payload: make([]byte, 300)}).Encode()
	require.Equal(t, byte(126), medium[1]&0x7f)

	large := (&Frame{FIN: true, Opcode: OpBinary, Payload: make([]byte, 1 << 17)}).Encode()
	require.Equal(t, byte(127), large[1]&0x7f)
}
