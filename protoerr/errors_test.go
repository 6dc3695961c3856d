package protoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfExtractsWrappedKind(t *testing.T) {
	err := Wrap(FlowControl, "window exceeded", errors.New("boom"))
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, FlowControl, kind)
}

func TestKindOfFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("not ours"))
	require.False(t, ok)
}

func TestIsComparesOnlyKind(t *testing.T) {
	a := HTTP2(Protocol, 1, "bad frame")
	b := HTTP2(Protocol, 2, "different code, same kind")
	require.True(t, errors.Is(a, b))

	c := WSClose(Handshake, 1002, "missing header")
	require.False(t, errors.Is(a, c))
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("short read")
	err := Wrap(IO, "closing connection", cause)
	require.Contains(t, err.Error(), "io_error")
	require.Contains(t, err.Error(), "short read")
}
