package http2

import (
	"bufio"
	"net"

	"github.com/valyala/fasthttp"
)

// Server adapts the HTTP/2 frame engine to a fasthttp.RequestHandler,
// the way the teacher's own Server type bridges HTTP/2 onto fasthttp
// request/response objects.
type Server struct {
	opts ConnOpts
}

// NewServer builds a Server from opts, applying defaults.
func NewServer(opts ConnOpts) *Server {
	opts.defaults()
	return &Server{opts: opts}
}

// ServeConn runs the HTTP/2 engine over an already-accepted
// connection, starting by reading and validating the client preface,
// until the peer disconnects or a fatal
// protocol error occurs. It never returns the connection to a caller:
// closing c is this call's responsibility.
func (s *Server) ServeConn(c net.Conn) error {
	sc := newServerConn(c, s.opts)
	return sc.serve()
}

// ServeConnWithReader is ServeConn for a caller (the connection
// dispatcher) that already peeked the client preface through br and
// must reuse that same reader rather than lose its buffered bytes to
// a fresh one.
func (s *Server) ServeConnWithReader(c net.Conn, br *bufio.Reader) error {
	sc := newServerConnWithReader(c, br, s.opts)
	return sc.serve()
}

// ConfigureServer wires h2 onto ss via its ALPN NextProto hook, for
// deployments where ss itself terminates TLS (ListenAndServeTLS and
// friends) and negotiates "h2". Plaintext h2c is handled by the ConnectionDispatcher
// directly and does not need this hook.
func ConfigureServer(ss *fasthttp.Server, opts ConnOpts) {
	srv := NewServer(opts)
	ss.NextProto("h2", func(c net.Conn) error {
		return srv.ServeConn(c)
	})
}
