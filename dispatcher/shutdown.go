package dispatcher

import (
	"sync/atomic"
	"time"

	"github.com/domsolutions/multiproto/health"
)

// DefaultShutdownTimeout is how long shutdown() waits for the active
// connection count to reach zero before giving up and returning
// anyway (the caller is still responsible for actually closing the
// listener/connections — this coordinator only tracks and signals).
const DefaultShutdownTimeout = 5 * time.Second

// GracefulShutdown tracks how many connections are in flight and
// coordinates a drain: once shutdown() is called, new connections
// must not increment the counter, and the health endpoint reports
// DOWN.
type GracefulShutdown struct {
	activeConns  int64
	shuttingDown int32

	Timeout time.Duration
	Health  *health.Endpoint
}

// NewGracefulShutdown builds a coordinator with the default 5s drain
// timeout. Health may be nil in tests that don't care about the
// liveness endpoint.
func NewGracefulShutdown(h *health.Endpoint) *GracefulShutdown {
	return &GracefulShutdown{Timeout: DefaultShutdownTimeout, Health: h}
}

// IncrementActiveConnections bumps the in-flight count, unless a
// shutdown is already underway, in which case it is a no-op and the
// caller must refuse the connection instead.
func (g *GracefulShutdown) IncrementActiveConnections() {
	if atomic.LoadInt32(&g.shuttingDown) == 1 {
		return
	}
	atomic.AddInt64(&g.activeConns, 1)
}

// DecrementActiveConnections reduces the in-flight count by one.
func (g *GracefulShutdown) DecrementActiveConnections() {
	atomic.AddInt64(&g.activeConns, -1)
}

// GetActiveConnectionCount returns the current in-flight count.
func (g *GracefulShutdown) GetActiveConnectionCount() int64 {
	return atomic.LoadInt64(&g.activeConns)
}

// IsShuttingDown reports whether shutdown() has been called.
func (g *GracefulShutdown) IsShuttingDown() bool {
	return atomic.LoadInt32(&g.shuttingDown) == 1
}

// Shutdown idempotently marks the coordinator as draining, flips the
// health endpoint to DOWN, and blocks until either the active
// connection count reaches zero or Timeout elapses.
func (g *GracefulShutdown) Shutdown() {
	if !atomic.CompareAndSwapInt32(&g.shuttingDown, 0, 1) {
		return
	}
	if g.Health != nil {
		g.Health.MarkUnhealthy()
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if g.GetActiveConnectionCount() <= 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}
