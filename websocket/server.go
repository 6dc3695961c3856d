package websocket

import (
	"net"

	"github.com/valyala/fasthttp"

	"github.com/domsolutions/multiproto/metrics"
)

// Server upgrades matching HTTP/1.1 requests to WebSocket connections
// and dispatches their lifetime to Handler's callbacks. It is a thin
// adaptor: connection state lives entirely on Conn.
type Server struct {
	Handler
	Metrics *metrics.Collector
}

// Upgrade is a fasthttp.RequestHandler: call it (directly, or from the
// connection dispatcher once it has decided the request is a
// WebSocket upgrade) to perform the handshake and hijack the
// connection. On a failed handshake it writes 400 with a reason
// naming the offending header and never hijacks.
func (s *Server) Upgrade(ctx *fasthttp.RequestCtx) {
	protocol, err := ValidateHandshake(ctx)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusBadRequest)
		return
	}

	key := append([]byte(nil), ctx.Request.Header.Peek("Sec-WebSocket-Key")...)

	ctx.SetStatusCode(fasthttp.StatusSwitchingProtocols)
	ctx.Response.Header.Set("Upgrade", "websocket")
	ctx.Response.Header.Set("Connection", "Upgrade")
	ctx.Response.Header.Set("Sec-WebSocket-Accept", AcceptKey(key))
	if protocol != "" {
		ctx.Response.Header.Set("Sec-WebSocket-Protocol", protocol)
	}

	handler := s.Handler
	m := s.Metrics
	if m == nil {
		m = metrics.Default()
	}

	ctx.Hijack(func(c net.Conn) {
		newConn(c, handler, m).serve()
	})
}

// IsUpgradeRequest reports whether ctx carries a WebSocket upgrade
// request by its Upgrade header alone — it does not validate the
// handshake fully, only enough to route.
func IsUpgradeRequest(ctx *fasthttp.RequestCtx) bool {
	return containsToken(ctx.Request.Header.Peek("Upgrade"), "websocket")
}
