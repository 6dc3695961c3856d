// Package dispatcher implements the connection-level protocol sniff
// that sits in front of this module's HTTP/2 engine and fasthttp's
// HTTP/1.1 server: a single accept loop peeks each new connection's
// first 24 bytes and routes it to whichever engine understands them.
package dispatcher

import (
	"bufio"
	"net"

	"github.com/valyala/fasthttp"

	"github.com/domsolutions/multiproto/health"
	"github.com/domsolutions/multiproto/http2"
	"github.com/domsolutions/multiproto/metrics"
)

// Dispatcher owns the plaintext accept loop: for each connection it
// decides, by sniffing the first 24 bytes, whether to hand off to the
// HTTP/2 engine (h2c, the client preface present with no prior TLS
// ALPN negotiation) or to fasthttp's HTTP/1.1 engine, which is also
// where WebSocket upgrades and SSE streams are served from, since
// both ride in on an ordinary HTTP/1.1 request.
type Dispatcher struct {
	// HTTP1 serves everything that isn't an h2c connection: plain
	// HTTP/1.1 requests, WebSocket upgrades, and SSE streams, all of
	// which are differentiated inside HTTP1.Handler by header
	// inspection, not by this dispatcher.
	HTTP1 *fasthttp.Server

	// HTTP2 serves connections whose first 24 bytes are the HTTP/2
	// client connection preface (h2c — no TLS, no ALPN).
	HTTP2 *http2.Server

	Metrics  *metrics.Collector
	Shutdown *GracefulShutdown

	// WorkerHint is accepted for introspection/metrics labeling only.
	// This dispatcher is goroutine-per-connection and unbounded; it
	// never uses WorkerHint to size a pool.
	WorkerHint int
}

// New builds a Dispatcher. http1 and h2 must be non-nil and already
// configured with their request handlers / ConnOpts.
func New(http1 *fasthttp.Server, h2 *http2.Server, h *health.Endpoint) *Dispatcher {
	return &Dispatcher{
		HTTP1:    http1,
		HTTP2:    h2,
		Metrics:  metrics.Default(),
		Shutdown: NewGracefulShutdown(h),
	}
}

// Serve runs the accept loop until ln.Accept returns an error (a
// closed listener, typically because Shutdown's caller closed it
// after GracefulShutdown.Shutdown returned). Each accepted connection
// is dispatched on its own goroutine.
func (d *Dispatcher) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}

		if d.Shutdown.IsShuttingDown() {
			_ = c.Close()
			continue
		}

		d.Shutdown.IncrementActiveConnections()
		if d.Metrics != nil {
			d.Metrics.IncActiveConnections()
		}

		go d.handle(c)
	}
}

func (d *Dispatcher) handle(c net.Conn) {
	defer func() {
		d.Shutdown.DecrementActiveConnections()
		if d.Metrics != nil {
			d.Metrics.DecActiveConnections()
		}
	}()

	br := bufio.NewReaderSize(c, 16384)

	isH2, err := http2.PeekPreface(br)
	if err != nil {
		_ = c.Close()
		return
	}

	if isH2 {
		_ = d.HTTP2.ServeConnWithReader(c, br)
		return
	}

	_ = d.HTTP1.ServeConn(&bufConn{Conn: c, br: br})
}

// bufConn lets fasthttp's own bufio.Reader (built fresh around
// whatever net.Conn ServeConn receives) see the bytes this
// dispatcher's preface peek already pulled off the wire into br,
// instead of losing them.
type bufConn struct {
	net.Conn
	br *bufio.Reader
}

func (bc *bufConn) Read(p []byte) (int, error) { return bc.br.Read(p) }
