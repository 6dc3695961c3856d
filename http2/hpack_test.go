package http2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHPACKRoundTripStaticTable(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	h := AcquireFrame(FrameHeaders).(*Headers)
	defer ReleaseFrame(h)

	hf := AcquireHeaderField()
	hf.Set(":method", "GET")
	enc.AppendHeaderField(h, hf, true)
	hf.Set(":path", "/")
	enc.AppendHeaderField(h, hf, true)
	hf.Set("accept-encoding", "gzip, deflate")
	enc.AppendHeaderField(h, hf, false)
	ReleaseHeaderField(hf)

	var got []*HeaderField
	block := h.HeaderBlock()
	for len(block) > 0 {
		f, rest, err := dec.DecodeField(block)
		require.NoError(t, err)
		got = append(got, f)
		block = rest
	}

	require.Len(t, got, 3)
	require.Equal(t, ":method", got[0].Key())
	require.Equal(t, "GET", got[0].Value())
	require.Equal(t, ":path", got[1].Key())
	require.Equal(t, "/", got[1].Value())
	require.Equal(t, "accept-encoding", got[2].Key())
	require.Equal(t, "gzip, deflate", got[2].Value())
}

func TestHPACKDynamicTableIndexesRepeatedField(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)

	for i := 0; i < 2; i++ {
		h := AcquireFrame(FrameHeaders).(*Headers)

		hf.Set("x-custom-trace", "abc123")
		enc.AppendHeaderField(h, hf, false)

		block := h.HeaderBlock()
		f, rest, err := dec.DecodeField(block)
		require.NoError(t, err)
		require.Empty(t, rest)
		require.Equal(t, "x-custom-trace", f.Key())
		require.Equal(t, "abc123", f.Value())
		ReleaseHeaderField(f)

		ReleaseFrame(h)
	}
}

func TestHPACKSetMaxTableSizeEvicts(t *testing.T) {
	hp := AcquireHPACK()
	defer ReleaseHPACK(hp)

	h := AcquireFrame(FrameHeaders).(*Headers)
	defer ReleaseFrame(h)

	hf := AcquireHeaderField()
	hf.Set("x-long-header-name", "a-fairly-long-value-to-occupy-table-space")
	hp.AppendHeaderField(h, hf, false)
	ReleaseHeaderField(hf)

	_, _, ok := hp.at(staticTableSize + 1)
	require.True(t, ok, "dynamic entry should be present before eviction")

	hp.SetMaxTableSize(0)

	_, _, ok = hp.at(staticTableSize + 1)
	require.False(t, ok, "SetMaxTableSize(0) must evict all dynamic entries")
}
