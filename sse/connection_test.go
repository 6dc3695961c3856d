package sse

import (
	"bufio"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectionOpenRejectsFromNonConnecting(t *testing.T) {
	c := NewConnection("id", "10.0.0.1")
	require.NoError(t, c.Open())
	require.Error(t, c.Open())
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	c := NewConnection("id", "10.0.0.1")
	require.NoError(t, c.Open())

	c.Close()
	c.Close()
	c.Close()

	require.Equal(t, Closed, c.State())
}

func TestSendEventRejectsNil(t *testing.T) {
	c := NewConnection("id", "10.0.0.1")
	require.NoError(t, c.Open())
	require.Error(t, c.SendEvent(nil))
}

func TestSendEventRejectsWhenNotOpen(t *testing.T) {
	c := NewConnection("id", "10.0.0.1")
	require.Error(t, c.SendEvent(&Event{Data: "x"}))
}

func TestSendEventDropsWhenQueueFull(t *testing.T) {
	c := NewConnection("id", "10.0.0.1", WithQueueSize(1))
	require.NoError(t, c.Open())

	require.NoError(t, c.SendEvent(&Event{Data: "first"}))

	done := make(chan struct{})
	go func() {
		require.NoError(t, c.SendEvent(&Event{Data: "second"}))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(sendOfferTimeout + 2*time.Second):
		t.Fatal("SendEvent should have returned after the offer timeout elapsed")
	}

	require.Equal(t, uint64(1), c.Stats().EventsDropped)
}

func TestRunDeliversQueuedEventAndUpdatesCounters(t *testing.T) {
	c := NewConnection("id", "10.0.0.1", WithKeepaliveInterval(50*time.Millisecond))
	require.NoError(t, c.Open())
	require.NoError(t, c.SendEvent(&Event{Data: "hello"}))

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	go func() {
		time.Sleep(20 * time.Millisecond)
		c.Close()
	}()

	c.Run(bw, func() error { return bw.Flush() })

	require.Contains(t, buf.String(), "data:hello\n\n")
	require.GreaterOrEqual(t, c.Stats().EventsSent, uint64(1))
}

func TestRunEmitsKeepaliveOnIdle(t *testing.T) {
	c := NewConnection("id", "10.0.0.1", WithKeepaliveInterval(10*time.Millisecond))
	require.NoError(t, c.Open())

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	go func() {
		time.Sleep(minSenderTimeout + 50*time.Millisecond)
		c.Close()
	}()

	c.Run(bw, func() error { return bw.Flush() })

	require.Contains(t, buf.String(), KeepaliveComment)
}
