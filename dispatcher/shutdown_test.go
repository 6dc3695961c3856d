package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/domsolutions/multiproto/health"
	"github.com/domsolutions/multiproto/metrics"
)

func TestIncrementActiveConnectionsNoopsAfterShutdown(t *testing.T) {
	g := NewGracefulShutdown(health.New(metrics.New()))

	g.IncrementActiveConnections()
	require.EqualValues(t, 1, g.GetActiveConnectionCount())

	g.DecrementActiveConnections()
	require.EqualValues(t, 0, g.GetActiveConnectionCount())

	done := make(chan struct{})
	go func() {
		g.Shutdown()
		close(done)
	}()

	// Give Shutdown a moment to flip the flag before probing it; the
	// drain itself returns immediately since the count is already 0.
	<-done

	g.IncrementActiveConnections()
	require.EqualValues(t, 0, g.GetActiveConnectionCount(), "increment after shutdown must be a no-op")
}

func TestShutdownIsIdempotent(t *testing.T) {
	g := NewGracefulShutdown(nil)
	g.Shutdown()
	g.Shutdown()
	require.True(t, g.IsShuttingDown())
}

func TestShutdownWaitsForActiveConnectionsToDrain(t *testing.T) {
	g := NewGracefulShutdown(nil)
	g.Timeout = time.Second

	g.IncrementActiveConnections()

	go func() {
		time.Sleep(30 * time.Millisecond)
		g.DecrementActiveConnections()
	}()

	start := time.Now()
	g.Shutdown()
	require.Less(t, time.Since(start), g.Timeout, "shutdown should return as soon as the count reaches zero, not wait out the full timeout")
}

func TestShutdownGivesUpAfterTimeoutIfConnectionsNeverDrain(t *testing.T) {
	g := NewGracefulShutdown(nil)
	g.Timeout = 40 * time.Millisecond

	g.IncrementActiveConnections()

	start := time.Now()
	g.Shutdown()
	require.GreaterOrEqual(t, time.Since(start), g.Timeout)
}

func TestShutdownMarksHealthEndpointUnhealthy(t *testing.T) {
	h := health.New(metrics.New())
	g := NewGracefulShutdown(h)
	g.Shutdown()
	require.True(t, g.IsShuttingDown())

	var ctx fasthttp.RequestCtx
	h.Health(&ctx)
	require.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
}
