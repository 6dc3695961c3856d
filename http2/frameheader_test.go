package http2

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameHeaderWriteToThenReadFrom(t *testing.T) {
	fh := AcquireFrameHeader()
	fh.SetStream(3)

	d := AcquireFrame(FrameData).(*Data)
	d.SetPayload([]byte("payload bytes"))
	d.SetEndStream(true)
	fh.SetBody(d)

	var buf bytes.Buffer
	require.NoError(t, fh.WriteTo(&buf, nil))
	ReleaseFrameHeader(fh)

	got, err := ReadFrameFrom(bufio.NewReader(&buf), DefaultMaxFrameSize)
	require.NoError(t, err)
	defer ReleaseFrameHeader(got)

	require.Equal(t, uint32(3), got.Stream())
	require.Equal(t, FrameData, got.Type())
	gd, ok := got.Body().(*Data)
	require.True(t, ok)
	require.Equal(t, []byte("payload bytes"), gd.Payload())
	require.True(t, gd.EndStream())
}

func TestReadPrefaceAcceptsExactMatch(t *testing.T) {
	br := bufio.NewReader(bytes.NewBufferString(FramePreface))
	require.NoError(t, ReadPreface(br))
}

func TestReadPrefaceRejectsMismatch(t *testing.T) {
	br := bufio.NewReader(bytes.NewBufferString("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.Error(t, ReadPreface(br))
}

func TestSettingsFrameRoundTrip(t *testing.T) {
	fh := AcquireFrameHeader()
	s := acquireSettings()
	s.InitialWindowSize = 70000
	s.MaxFrameSize = 32768
	fh.SetBody(s)

	var buf bytes.Buffer
	require.NoError(t, fh.WriteTo(&buf, nil))
	ReleaseFrameHeader(fh)

	got, err := ReadFrameFrom(bufio.NewReader(&buf), DefaultMaxFrameSize)
	require.NoError(t, err)
	defer ReleaseFrameHeader(got)

	gs, ok := got.Body().(*Settings)
	require.True(t, ok)
	require.Equal(t, uint32(70000), gs.InitialWindowSize)
	require.Equal(t, uint32(32768), gs.MaxFrameSize)
}
