package dispatcher

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/domsolutions/multiproto/health"
	"github.com/domsolutions/multiproto/http2"
	"github.com/domsolutions/multiproto/metrics"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *fasthttputil.InmemoryListener) {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()

	http1 := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			ctx.SetBodyString("h1")
		},
	}
	h2 := http2.NewServer(http2.ConnOpts{
		Handler: func(ctx *fasthttp.RequestCtx) {
			ctx.SetBodyString("h2")
		},
	})

	h := health.New(metrics.New())
	d := New(http1, h2, h)
	return d, ln
}

func TestDispatcherRoutesH2CConnectionToHTTP2Engine(t *testing.T) {
	d, ln := newTestDispatcher(t)
	go func() { _ = d.Serve(ln) }()
	defer ln.Close()

	conn, err := ln.Dial()
	require.NoError(t, err)

	cl, err := http2.DialConn(conn)
	require.NoError(t, err)
	defer cl.Close()

	resp, err := cl.Get("example.com", "/")
	require.NoError(t, err)
	require.Equal(t, "h2", string(resp.Body))
}

func TestDispatcherRoutesPlainHTTP1ConnectionToHTTP1Engine(t *testing.T) {
	d, ln := newTestDispatcher(t)
	go func() { _ = d.Serve(ln) }()
	defer ln.Close()

	conn, err := ln.Dial()
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	var resp fasthttp.Response
	require.NoError(t, resp.Read(br))
	require.Equal(t, "h1", string(resp.Body()))
}

func TestDispatcherRefusesNewConnectionsWhileShuttingDown(t *testing.T) {
	d, ln := newTestDispatcher(t)
	go func() { _ = d.Serve(ln) }()
	defer ln.Close()

	d.Shutdown.Shutdown()

	conn, err := ln.Dial()
	require.NoError(t, err)

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn.Read(buf)
	require.Error(t, err, "dispatcher must close connections accepted after shutdown")
}
