package sse

import (
	"bufio"
	"sync"
	"sync/atomic"
	"time"

	"github.com/domsolutions/multiproto/bufferpool"
	"github.com/domsolutions/multiproto/metrics"
	"github.com/domsolutions/multiproto/protoerr"
)

// eventBufPool backs Run's per-event serialization: events that fit in
// 4KB are rendered without allocating, the common case for short SSE
// payloads.
var eventBufPool = bufferpool.New(4096, 64)

// State is a Connection's position in its CONNECTING -> OPEN -> CLOSED
// lifecycle. There is no way back from CLOSED.
type State int32

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

const (
	defaultQueueSize         = 100
	defaultKeepaliveInterval = 15 * time.Second
	defaultInactivityTimeout = 60 * time.Second
	sendOfferTimeout         = 5 * time.Second
	minSenderTimeout         = 100 * time.Millisecond
)

// Connection is one client's Server-Sent Events stream: a bounded
// outbound event queue drained by a sender loop that also emits
// keepalive comments and enforces an inactivity timeout.
type Connection struct {
	id       string
	clientIP string
	topic    string

	state int32

	queue     chan *Event
	closeCh   chan struct{}
	closeOnce sync.Once

	keepaliveInterval time.Duration
	inactivityTimeout time.Duration

	lastActivity int64

	eventsSent       uint64
	eventsDropped    uint64
	bytesTransmitted uint64

	createdAt time.Time
	metrics   *metrics.Collector
	onError   func(c *Connection, err error)
}

// Option configures a Connection at construction time.
type Option func(*Connection)

// WithKeepaliveInterval overrides the default 15s keepalive comment
// interval.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(c *Connection) { c.keepaliveInterval = d }
}

// WithInactivityTimeout overrides the default 60s timeout after which
// a Connection that has sent nothing (not even a keepalive ack from
// the sender's perspective — this tracks our own last write) is
// closed.
func WithInactivityTimeout(d time.Duration) Option {
	return func(c *Connection) { c.inactivityTimeout = d }
}

// WithQueueSize overrides the default 100-event bounded queue depth.
func WithQueueSize(n int) Option {
	return func(c *Connection) { c.queue = make(chan *Event, n) }
}

// WithMetrics attaches a metrics collector; nil falls back to
// metrics.Default() at construction time.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Connection) { c.metrics = m }
}

// WithErrorHandler registers a callback invoked when the sender loop's
// write to the underlying stream fails.
func WithErrorHandler(f func(c *Connection, err error)) Option {
	return func(c *Connection) { c.onError = f }
}

// NewConnection builds a Connection in the CONNECTING state. id should
// be unique per process (the dispatcher mints it); clientIP feeds the
// manager's per-IP admission limit.
func NewConnection(id, clientIP string, opts ...Option) *Connection {
	c := &Connection{
		id:                id,
		clientIP:          clientIP,
		state:             int32(Connecting),
		queue:             make(chan *Event, defaultQueueSize),
		closeCh:           make(chan struct{}),
		keepaliveInterval: defaultKeepaliveInterval,
		inactivityTimeout: defaultInactivityTimeout,
		createdAt:         time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Default()
	}
	return c
}

// ID returns the connection's identifier.
func (c *Connection) ID() string { return c.id }

// ClientIP returns the peer address used for admission control.
func (c *Connection) ClientIP() string { return c.clientIP }

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return State(atomic.LoadInt32(&c.state)) }

// IsOpen reports whether the connection currently accepts new events.
func (c *Connection) IsOpen() bool { return c.State() == Open }

// Open transitions CONNECTING -> OPEN. It is an error to call this
// from any other state.
func (c *Connection) Open() error {
	if !atomic.CompareAndSwapInt32(&c.state, int32(Connecting), int32(Open)) {
		return protoerr.New(protoerr.State, "sse: Open called outside CONNECTING state")
	}
	if c.metrics != nil {
		c.metrics.SSEConnsActive.Inc()
	}
	return nil
}

// Close idempotently transitions to CLOSED and unblocks the sender
// loop. Safe to call from any goroutine, any number of times.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		wasOpen := atomic.SwapInt32(&c.state, int32(Closed)) == int32(Open)
		close(c.closeCh)
		if wasOpen && c.metrics != nil {
			c.metrics.SSEConnsActive.Dec()
		}
	})
}

// SendEvent enqueues ev for delivery. If the queue is full it waits up
// to 5 seconds before giving up and counting the event as dropped;
// dropping is not reported to the caller as an error, since a slow
// reader is expected, ordinary behavior, not a caller mistake. Sending
// on a non-OPEN connection, or a nil event, is a caller error.
func (c *Connection) SendEvent(ev *Event) error {
	if ev == nil {
		return protoerr.New(protoerr.State, "sse: nil event")
	}
	if !c.IsOpen() {
		return protoerr.New(protoerr.State, "sse: SendEvent on non-OPEN connection")
	}

	timer := time.NewTimer(sendOfferTimeout)
	defer timer.Stop()

	select {
	case c.queue <- ev:
		return nil
	case <-timer.C:
		atomic.AddUint64(&c.eventsDropped, 1)
		if c.metrics != nil {
			c.metrics.SSEEventsDropped.Inc()
		}
		return nil
	case <-c.closeCh:
		return protoerr.New(protoerr.State, "sse: connection closed while offering event")
	}
}

// Stats is a point-in-time snapshot of a Connection's counters.
type Stats struct {
	EventsSent       uint64
	EventsDropped    uint64
	BytesTransmitted uint64
	Age              time.Duration
}

// Stats returns a snapshot of the connection's counters.
func (c *Connection) Stats() Stats {
	return Stats{
		EventsSent:       atomic.LoadUint64(&c.eventsSent),
		EventsDropped:    atomic.LoadUint64(&c.eventsDropped),
		BytesTransmitted: atomic.LoadUint64(&c.bytesTransmitted),
		Age:              time.Since(c.createdAt),
	}
}

// Run drains the event queue into w until the connection closes or a
// write fails, interleaving keepalive comments so idle proxies don't
// time the stream out, and closing the connection itself if nothing
// has been written for longer than the inactivity timeout. It blocks
// for the connection's lifetime; call it from the goroutine that owns
// the underlying stream (fasthttp's SetBodyStreamWriter callback).
func (c *Connection) Run(w *bufio.Writer, flush func() error) {
	atomic.StoreInt64(&c.lastActivity, time.Now().UnixNano())

	for {
		since := time.Since(c.lastActivityTime())
		wait := c.keepaliveInterval - since
		if wait < minSenderTimeout {
			wait = minSenderTimeout
		}
		timer := time.NewTimer(wait)

		select {
		case <-c.closeCh:
			timer.Stop()
			return

		case ev := <-c.queue:
			timer.Stop()
			buf := eventBufPool.Acquire()
			ok := c.write(w, flush, ev.SerializeInto(buf))
			eventBufPool.Release(buf)
			if !ok {
				return
			}
			atomic.AddUint64(&c.eventsSent, 1)
			if c.metrics != nil {
				c.metrics.SSEEventsSent.Inc()
			}

		case <-timer.C:
			if time.Since(c.lastActivityTime()) >= c.inactivityTimeout {
				c.Close()
				return
			}
			if !c.write(w, flush, []byte(KeepaliveComment)) {
				return
			}
		}
	}
}

func (c *Connection) lastActivityTime() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastActivity))
}

func (c *Connection) write(w *bufio.Writer, flush func() error, b []byte) bool {
	n, err := w.Write(b)
	if err == nil {
		err = flush()
	}
	if err != nil {
		if c.onError != nil {
			c.onError(c, err)
		}
		c.Close()
		return false
	}
	atomic.AddUint64(&c.bytesTransmitted, uint64(n))
	atomic.StoreInt64(&c.lastActivity, time.Now().UnixNano())
	return true
}
