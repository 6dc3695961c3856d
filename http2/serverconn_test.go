package http2

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serveOnce(t *testing.T, handler fasthttp.RequestHandler) (*Client, func()) {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	srv := NewServer(ConnOpts{Handler: handler})

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		_ = srv.ServeConn(c)
	}()

	conn, err := ln.Dial()
	require.NoError(t, err)

	cl, err := DialConn(conn)
	require.NoError(t, err)

	return cl, func() {
		_ = cl.Close()
		_ = ln.Close()
	}
}

func TestServeConnSimpleGet(t *testing.T) {
	cl, closeAll := serveOnce(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("hello h2")
	})
	defer closeAll()

	resp, err := cl.Get("example.com", "/")
	require.NoError(t, err)
	require.Equal(t, fasthttp.StatusOK, resp.Status)
	require.Equal(t, "hello h2", string(resp.Body))
}

func TestServeConnEchoesRequestHeader(t *testing.T) {
	cl, closeAll := serveOnce(t, func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.Set("X-Echo-Path", string(ctx.Path()))
		ctx.SetStatusCode(fasthttp.StatusOK)
	})
	defer closeAll()

	resp, err := cl.Get("example.com", "/widgets/7")
	require.NoError(t, err)
	require.Equal(t, "/widgets/7", resp.Headers["x-echo-path"])
}

func TestServeConnPostBody(t *testing.T) {
	cl, closeAll := serveOnce(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBody(append([]byte("echo:"), ctx.PostBody()...))
	})
	defer closeAll()

	resp, err := cl.Do("POST", "example.com", "/submit", []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, "echo:payload", string(resp.Body))
}

func TestServeConnMultipleStreamsOnOneConnection(t *testing.T) {
	cl, closeAll := serveOnce(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString(string(ctx.Path()))
	})
	defer closeAll()

	for i := 0; i < 5; i++ {
		resp, err := cl.Get("example.com", "/n")
		require.NoError(t, err)
		require.Equal(t, "/n", string(resp.Body))
	}
}

func TestServeConnLargeBodySpansMultipleDataFrames(t *testing.T) {
	big := make([]byte, 5*DefaultMaxFrameSize)
	for i := range big {
		big[i] = byte(i)
	}

	cl, closeAll := serveOnce(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBody(big)
	})
	defer closeAll()

	resp, err := cl.Get("example.com", "/")
	require.NoError(t, err)
	require.Equal(t, big, resp.Body)
}

func TestPeekPrefaceDetectsH2C(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	done := make(chan struct{})
	go func() {
		_, _ = cli.Write([]byte(FramePreface))
		close(done)
	}()

	br := bufio.NewReader(srv)
	is, err := PeekPreface(br)
	require.NoError(t, err)
	require.True(t, is)
	<-done
}

func TestPeekPrefaceRejectsHTTP1(t *testing.T) {
	srv, cli := net.Pipe()
	defer srv.Close()
	defer cli.Close()

	done := make(chan struct{})
	go func() {
		_, _ = cli.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
		close(done)
	}()

	br := bufio.NewReader(srv)
	is, err := PeekPreface(br)
	require.NoError(t, err)
	require.False(t, is)
	<-done
}
