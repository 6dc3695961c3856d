package sse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/domsolutions/multiproto/bufferpool"
)

func TestEventSerializeMinimal(t *testing.T) {
	e := &Event{Data: "hello"}
	require.Equal(t, "data:hello\n\n", string(e.Serialize()))
}

func TestEventSerializeFullFields(t *testing.T) {
	e := &Event{Data: "hello", Event: "greeting", ID: "42", RetryMS: 3000}
	require.Equal(t, "event:greeting\nid:42\nretry:3000\ndata:hello\n\n", string(e.Serialize()))
}

func TestEventSerializeMultilineData(t *testing.T) {
	e := &Event{Data: "line1\nline2"}
	require.Equal(t, "data:line1\ndata:line2\n\n", string(e.Serialize()))
}

func TestSerializeIntoMatchesSerialize(t *testing.T) {
	e := &Event{Data: "hello", Event: "greeting", ID: "42", RetryMS: 3000}
	pool := bufferpool.New(256, 1)
	buf := pool.Acquire()
	require.Equal(t, string(e.Serialize()), string(e.SerializeInto(buf)))
}

func TestSerializeIntoFallsBackWhenBufferTooSmall(t *testing.T) {
	e := &Event{Data: "this event is longer than the buffer"}
	pool := bufferpool.New(4, 1)
	buf := pool.Acquire()
	require.Equal(t, string(e.Serialize()), string(e.SerializeInto(buf)))
}
