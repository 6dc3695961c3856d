// Command server boots the multi-protocol dispatcher: HTTP/1.1 (via
// fasthttp), h2c, WebSocket, and SSE on one listener, plus /health and
// /health/metrics.
package main

import (
	"bufio"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/domsolutions/multiproto/dispatcher"
	"github.com/domsolutions/multiproto/health"
	"github.com/domsolutions/multiproto/http2"
	"github.com/domsolutions/multiproto/metrics"
	"github.com/domsolutions/multiproto/sse"
	"github.com/domsolutions/multiproto/tracecontext"
	"github.com/domsolutions/multiproto/websocket"
)

var (
	listenArg = flag.String("addr", ":8080", "address to listen on")
	certArg   = flag.String("cert", "", "TLS certificate file (enables ALPN h2 instead of h2c)")
	keyArg    = flag.String("key", "", "TLS key file")
)

func init() {
	flag.Parse()
}

func main() {
	m := metrics.Default()
	healthEP := health.New(m)

	sseManager := sse.Default()
	wsServer := &websocket.Server{Metrics: m}
	wsServer.Open = func(c *websocket.Conn) {
		log.Printf("ws: open %s (id=%d)", c.RemoteAddr(), c.ID())
	}
	wsServer.Message = func(c *websocket.Conn, mt websocket.MessageType, data []byte) {
		if mt == websocket.TextMessage {
			_ = c.Write(data)
		} else {
			_ = c.WriteBinary(data)
		}
	}
	wsServer.Close = func(c *websocket.Conn, code uint16, reason string) {
		log.Printf("ws: close %s code=%d reason=%q", c.RemoteAddr(), code, reason)
	}

	r := router.New()
	r.GET("/health", healthEP.Health)
	r.GET("/health/metrics", healthEP.Metrics)
	r.GET("/ws", wsServer.Upgrade)
	r.GET("/events/{topic}", sseHandler(sseManager, m))

	traced := withTraceContext(r.Handler)

	http1 := &fasthttp.Server{
		Handler: traced,
		Name:    "multiproto",
	}

	h2 := http2.NewServer(http2.ConnOpts{Handler: traced})

	if *certArg != "" && *keyArg != "" {
		http2.ConfigureServer(http1, http2.ConnOpts{Handler: traced})

		log.Printf("listening on %s (tls, h2 via alpn)", *listenArg)
		if err := http1.ListenAndServeTLS(*listenArg, *certArg, *keyArg); err != nil {
			log.Fatal(err)
		}
		return
	}

	ln, err := net.Listen("tcp", *listenArg)
	if err != nil {
		log.Fatal(err)
	}

	d := dispatcher.New(http1, h2, healthEP)
	d.Metrics = m

	go handleSignals(d, ln)

	log.Printf("listening on %s (plaintext, h2c via preface sniff)", *listenArg)
	if err := d.Serve(ln); err != nil {
		log.Printf("accept loop exited: %s", err)
	}

	d.Shutdown.Shutdown()
	sseManager.CloseAllConnections()
}

func handleSignals(d *dispatcher.Dispatcher, ln net.Listener) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("shutting down")
	d.Shutdown.Shutdown()
	_ = ln.Close()
}

// withTraceContext extracts (or mints) a W3C trace context for every
// request and echoes it back in the traceparent response header so a
// caller can correlate retries across protocols.
func withTraceContext(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		tc := tracecontext.Extract(string(ctx.Request.Header.Peek("traceparent")))
		ctx.Response.Header.Set("traceparent", tc.ToTraceparent())
		next(ctx)
	}
}

// sseHandler builds a fasthttp.RequestHandler that opens a streaming
// SSE connection for the {topic} route parameter, registers it with
// mgr under the caller's IP for admission control, and blocks (inside
// fasthttp's body-stream writer callback) running the connection's
// sender loop until it closes.
func sseHandler(mgr *sse.Manager, m *metrics.Collector) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		topic, ok := ctx.UserValue("topic").(string)
		if !ok || topic == "" {
			ctx.Error("missing topic", fasthttp.StatusBadRequest)
			return
		}

		clientIP := ctx.RemoteIP().String()
		connID := clientIP + "-" + topic + "-" + strconv.FormatUint(ctx.ID(), 10)

		conn := sse.NewConnection(connID, clientIP, sse.WithMetrics(m))
		if !mgr.RegisterConnection(topic, conn) {
			ctx.Error("connection limit reached", fasthttp.StatusTooManyRequests)
			return
		}

		if err := conn.Open(); err != nil {
			mgr.UnregisterConnection(conn)
			ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
			return
		}

		ctx.SetContentType("text/event-stream")
		ctx.Response.Header.Set("Cache-Control", "no-cache")
		ctx.Response.Header.Set("Connection", "keep-alive")
		ctx.Response.Header.Set("X-Accel-Buffering", "no")

		ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer mgr.UnregisterConnection(conn)
			conn.Run(w, w.Flush)
		}))
	}
}
