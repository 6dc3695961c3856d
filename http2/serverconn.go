package http2

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/domsolutions/multiproto/protoerr"
)

// serverConn is one HTTP/2 connection's engine: a single reader
// goroutine parses frames and drives the stream state machine; a
// single writer goroutine owns the socket's write side so that frame
// bytes are never interleaved across goroutines. No lock is held
// across a network read or write.
type serverConn struct {
	c  net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	opts ConnOpts

	state   *connState
	streams Streams

	hpackDec *HPACK // decodes header blocks sent by the peer
	hpackEnc *HPACK // encodes header blocks sent to the peer

	writeCh chan *FrameHeader
	closeCh chan struct{}
	closeOnce sync.Once

	mu sync.Mutex // guards windows + cond below; never held across I/O
	windowCond *sync.Cond

	// pendingHeaderStream is non-zero while a HEADERS/PUSH_PROMISE
	// block is open awaiting CONTINUATION frames (RFC 7540 §6.10):
	// any other frame type observed while this is set is a
	// PROTOCOL_ERROR.
	pendingHeaderStream uint32

	wg sync.WaitGroup
}

func newServerConn(c net.Conn, opts ConnOpts) *serverConn {
	return newServerConnWithReader(c, bufio.NewReaderSize(c, 16384), opts)
}

// newServerConnWithReader is used by the connection dispatcher, which
// must peek the client preface off the socket before it knows this is
// an HTTP/2 connection at all: the bufio.Reader it peeked through
// carries buffered bytes that a fresh bufio.Reader over c would never
// see, so it is handed in rather than rebuilt.
func newServerConnWithReader(c net.Conn, br *bufio.Reader, opts ConnOpts) *serverConn {
	local := defaultSettings()
	local.MaxFrameSize = opts.MaxFrameSize
	local.MaxConcurrentStreams = opts.MaxConcurrentStreams

	sc := &serverConn{
		c:        c,
		br:       br,
		bw:       bufio.NewWriterSize(c, 16384),
		opts:     opts,
		state:    newConnState(local),
		hpackDec: AcquireHPACK(),
		hpackEnc: AcquireHPACK(),
		writeCh:  make(chan *FrameHeader, 64),
		closeCh:  make(chan struct{}),
	}
	sc.windowCond = sync.NewCond(&sc.mu)
	return sc
}

func (sc *serverConn) serve() error {
	defer sc.shutdown()

	if err := ReadPreface(sc.br); err != nil {
		return err
	}

	sc.wg.Add(1)
	go sc.writeLoop()

	sc.sendSettings(sc.state.local)

	err := sc.readLoop()

	code := ErrCodeNo
	var perr *protoerr.Error
	if err != nil && !errors.Is(err, io.EOF) {
		if errors.As(err, &perr) {
			code = perr.HTTP2Code
		} else {
			code = ErrCodeInternal
		}
	}
	sc.writeGoAway(code)

	return err
}

func (sc *serverConn) shutdown() {
	sc.closeOnce.Do(func() { close(sc.closeCh) })
	sc.mu.Lock()
	sc.windowCond.Broadcast()
	sc.mu.Unlock()
	sc.wg.Wait()
	ReleaseHPACK(sc.hpackDec)
	ReleaseHPACK(sc.hpackEnc)
	_ = sc.c.Close()
}

func (sc *serverConn) readLoop() error {
	for {
		fh, err := ReadFrameFrom(sc.br, sc.state.local.MaxFrameSize)
		if err != nil {
			return err
		}

		err = sc.handleFrame(fh)
		ReleaseFrameHeader(fh)
		if err != nil {
			return err
		}
	}
}

func (sc *serverConn) handleFrame(fh *FrameHeader) error {
	if sc.pendingHeaderStream != 0 {
		if fh.kind != FrameContinuation || fh.stream != sc.pendingHeaderStream {
			return newProtocolError("expected CONTINUATION on stream with open header block")
		}
	}

	switch fh.kind {
	case FrameSettings:
		return sc.handleSettings(fh)
	case FrameWindowUpdate:
		return sc.handleWindowUpdate(fh)
	case FrameHeaders:
		return sc.handleHeaders(fh)
	case FrameContinuation:
		return sc.handleContinuation(fh)
	case FrameData:
		return sc.handleData(fh)
	case FramePriority:
		return nil // parsed and validated by Priority.Deserialize; not acted on
	case FrameRstStream:
		if s := sc.streams.Get(fh.stream); s != nil {
			s.SetState(StreamClosed)
		}
		return nil
	case FramePing:
		return sc.handlePing(fh)
	case FrameGoAway:
		sc.state.goAwayRecv = true
		return nil
	case FramePushPromise:
		return newProtocolError("server does not accept PUSH_PROMISE")
	default:
		return nil // unknown frame types are ignored per RFC 7540 §4.1
	}
}

func (sc *serverConn) handleSettings(fh *FrameHeader) error {
	st := fh.fr.(*Settings)

	if fh.flags.Has(FlagAck) {
		sc.state.settingsAcked = true
		return nil
	}

	oldInitWin := sc.state.peer.InitialWindowSize
	delta := int64(st.InitialWindowSize) - int64(oldInitWin)

	// st is the pooled frame body owned by fh; readLoop releases fh
	// (and st, via ReleaseFrame) as soon as handleFrame returns, so the
	// connection's view of the peer's settings must be copied out, not
	// aliased.
	sc.state.peer.HeaderTableSize = st.HeaderTableSize
	sc.state.peer.EnablePush = st.EnablePush
	sc.state.peer.MaxConcurrentStreams = st.MaxConcurrentStreams
	sc.state.peer.InitialWindowSize = st.InitialWindowSize
	sc.state.peer.MaxFrameSize = st.MaxFrameSize
	sc.state.peer.MaxHeaderListSize = st.MaxHeaderListSize

	if delta != 0 {
		sc.mu.Lock()
		err := sc.streams.EachErr(func(s *Stream) error {
			s.AddSendWindow(delta)
			if s.SendWindow() > MaxWindowSize {
				return newFlowControlError("stream send window overflow")
			}
			return nil
		})
		sc.windowCond.Broadcast()
		sc.mu.Unlock()
		if err != nil {
			return err
		}
	}

	sc.hpackEnc.SetMaxTableSize(st.HeaderTableSize)

	ackFh := AcquireFrameHeader()
	ackFh.SetBody(acquireSettings())
	ackFh.SetFlags(FlagAck)
	sc.queueWrite(ackFh)
	return nil
}

// sendSettings queues s for serialization. The frame body must be a
// copy, never sc.state.local itself: the write loop releases frame
// bodies back to their sync.Pool after writing, which would reset a
// shared *Settings to its zero/default values.
func (sc *serverConn) sendSettings(s *Settings) {
	fh := AcquireFrameHeader()
	fh.SetBody(cloneSettings(s))
	sc.queueWrite(fh)
}

func cloneSettings(s *Settings) *Settings {
	c := acquireSettings()
	c.HeaderTableSize = s.HeaderTableSize
	c.EnablePush = s.EnablePush
	c.MaxConcurrentStreams = s.MaxConcurrentStreams
	c.InitialWindowSize = s.InitialWindowSize
	c.MaxFrameSize = s.MaxFrameSize
	c.MaxHeaderListSize = s.MaxHeaderListSize
	return c
}

func (sc *serverConn) handleWindowUpdate(fh *FrameHeader) error {
	wu := fh.fr.(*WindowUpdate)

	sc.mu.Lock()
	if fh.stream == 0 {
		sc.state.sendWindow += int64(wu.Increment())
		if sc.state.sendWindow > MaxWindowSize {
			sc.mu.Unlock()
			return newFlowControlError("connection send window overflow")
		}
	} else if s := sc.streams.Get(fh.stream); s != nil {
		s.AddSendWindow(int64(wu.Increment()))
		if s.SendWindow() > MaxWindowSize {
			sc.mu.Unlock()
			return newFlowControlError("stream send window overflow")
		}
	}
	sc.windowCond.Broadcast()
	sc.mu.Unlock()
	return nil
}

func (sc *serverConn) handlePing(fh *FrameHeader) error {
	p := fh.fr.(*Ping)
	if fh.flags.Has(FlagAck) {
		return nil // RTT measurement hook; PING ACKs are just consumed here.
	}

	reply := AcquireFrameHeader()
	pp := AcquireFrame(FramePing).(*Ping)
	pp.SetData(p.Data())
	reply.SetBody(pp)
	reply.SetFlags(FlagAck)
	sc.queueWrite(reply)
	return nil
}

func (sc *serverConn) handleHeaders(fh *FrameHeader) error {
	id := fh.stream
	if !IsClientInitiated(id) {
		return newProtocolError("even stream id from client")
	}
	if id <= sc.streams.LastOpenedID() && sc.streams.Get(id) == nil {
		return newProtocolError("stream id did not increase")
	}

	s := sc.streams.Get(id)
	if s == nil {
		s = NewStream(id, int64(sc.state.peer.InitialWindowSize), DefaultWindowSize)
		s.SetState(StreamOpen)
		sc.streams.Insert(s)
	}

	h := fh.fr.(*Headers)
	s.AppendHeaderBlock(h.HeaderBlock())
	s.SetEndStreamRecv(h.EndStream())

	if !h.EndHeaders() {
		sc.pendingHeaderStream = id
		return nil
	}

	return sc.finishHeaders(s)
}

func (sc *serverConn) handleContinuation(fh *FrameHeader) error {
	s := sc.streams.Get(fh.stream)
	if s == nil {
		return newProtocolError("CONTINUATION on unknown stream")
	}

	c := fh.fr.(*Continuation)
	s.AppendHeaderBlock(c.HeaderBlock())

	if !c.EndHeaders() {
		return nil
	}

	sc.pendingHeaderStream = 0
	return sc.finishHeaders(s)
}

func (sc *serverConn) finishHeaders(s *Stream) error {
	s.SetHeadersFinished(true)

	ctx := &fasthttp.RequestCtx{}
	if err := decodeRequestHeaders(sc.hpackDec, s.HeaderBlock(), &ctx.Request); err != nil {
		return err
	}
	s.ctx = ctx
	s.ResetHeaderBlock()

	if s.EndStreamRecv() {
		s.SetState(StreamHalfClosedRemote)
		sc.wg.Add(1)
		go sc.handleEndRequest(s)
	}
	return nil
}

func (sc *serverConn) handleData(fh *FrameHeader) error {
	s := sc.streams.Get(fh.stream)
	if s == nil {
		return newProtocolError("DATA on unknown stream")
	}
	if s.State() == StreamHalfClosedRemote || s.State() == StreamClosed {
		return newProtocolError("DATA on half-closed/closed stream")
	}

	d := fh.fr.(*Data)
	n := int64(len(d.Payload()))

	sc.mu.Lock()
	sc.state.recvWindow -= n
	s.AddRecvWindow(-n)
	needConnUpdate := sc.state.recvWindow < DefaultWindowSize/2
	needStreamUpdate := s.RecvWindow() < DefaultWindowSize/2
	if needConnUpdate {
		sc.state.recvWindow += DefaultWindowSize
	}
	if needStreamUpdate {
		s.AddRecvWindow(DefaultWindowSize)
	}
	sc.mu.Unlock()

	if s.ctx != nil {
		s.ctx.Request.AppendBody(d.Payload())
	}

	if needConnUpdate {
		sc.sendWindowUpdate(0, DefaultWindowSize)
	}
	if needStreamUpdate {
		sc.sendWindowUpdate(s.ID(), DefaultWindowSize)
	}

	if d.EndStream() {
		s.SetEndStreamRecv(true)
		s.SetState(StreamHalfClosedRemote)
		if s.HeadersFinished() {
			sc.wg.Add(1)
			go sc.handleEndRequest(s)
		}
	}

	return nil
}

func (sc *serverConn) sendWindowUpdate(stream uint32, increment uint32) {
	fh := AcquireFrameHeader()
	fh.SetStream(stream)
	wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
	wu.SetIncrement(increment)
	fh.SetBody(wu)
	sc.queueWrite(fh)
}

// handleEndRequest runs the user Handler for a fully-received request
// and streams the response back, respecting flow control. One
// goroutine per completed request lets independent streams make
// progress concurrently even though a single writer serializes bytes
// onto the wire.
func (sc *serverConn) handleEndRequest(s *Stream) {
	defer sc.wg.Done()

	func() {
		defer func() {
			if r := recover(); r != nil {
				sc.opts.Logger.Printf("http2: handler panic on stream %d: %v", s.ID(), r)
			}
		}()
		sc.opts.Handler(s.ctx)
	}()

	respHeaders := AcquireFrame(FrameHeaders).(*Headers)
	encodeResponseHeaders(sc.hpackEnc, respHeaders, &s.ctx.Response)

	body := s.ctx.Response.Body()
	respHeaders.SetEndHeaders(true)
	respHeaders.SetEndStream(len(body) == 0)

	fh := AcquireFrameHeader()
	fh.SetStream(s.ID())
	fh.SetBody(respHeaders)
	sc.queueWrite(fh)

	if len(body) > 0 {
		sc.streamWrite(s, body)
	}

	s.SetState(StreamClosed)
}

// streamWrite chunks body into DATA frames no larger than the peer's
// MAX_FRAME_SIZE, blocking (without holding sc.mu across I/O) until
// both the connection and stream send-windows have enough budget for
// each chunk.
func (sc *serverConn) streamWrite(s *Stream, body []byte) {
	maxChunk := int(sc.state.peer.MaxFrameSize)
	if maxChunk <= 0 {
		maxChunk = DefaultMaxFrameSize
	}

	for len(body) > 0 {
		n := sc.awaitWindow(s, len(body), maxChunk)
		if n <= 0 {
			return // connection is closing
		}

		chunk := body[:n]
		body = body[n:]

		d := AcquireFrame(FrameData).(*Data)
		d.SetPayload(chunk)
		d.SetEndStream(len(body) == 0)

		fh := AcquireFrameHeader()
		fh.SetStream(s.ID())
		fh.SetBody(d)
		sc.queueWrite(fh)
	}
}

// awaitWindow blocks until min(connection window, stream window, want,
// maxChunk) > 0, decrementing both windows by that amount atomically
// with the wait. Returns 0 if the connection is shutting down.
func (sc *serverConn) awaitWindow(s *Stream, want, maxChunk int) int {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for {
		select {
		case <-sc.closeCh:
			return 0
		default:
		}

		avail := sc.state.sendWindow
		if s.SendWindow() < avail {
			avail = s.SendWindow()
		}
		if avail > 0 {
			n := want
			if n > maxChunk {
				n = maxChunk
			}
			if int64(n) > avail {
				n = int(avail)
			}
			sc.state.sendWindow -= int64(n)
			s.AddSendWindow(-int64(n))
			return n
		}

		sc.windowCond.Wait()
	}
}

func (sc *serverConn) queueWrite(fh *FrameHeader) {
	select {
	case sc.writeCh <- fh:
	case <-sc.closeCh:
		ReleaseFrameHeader(fh)
	}
}

func (sc *serverConn) writeGoAway(code uint32) {
	if sc.state.goAwaySent {
		return
	}
	sc.state.goAwaySent = true

	fh := AcquireFrameHeader()
	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetLastStreamID(sc.streams.LastOpenedID())
	ga.SetCode(code)
	fh.SetBody(ga)
	sc.queueWrite(fh)

	// Give the write loop one chance to flush the GOAWAY before we
	// tear the connection down from serve()'s defer.
	time.Sleep(5 * time.Millisecond)
}

func (sc *serverConn) writeLoop() {
	defer sc.wg.Done()

	var pingTicker *time.Ticker
	var pingC <-chan time.Time
	if sc.opts.PingInterval > 0 {
		pingTicker = time.NewTicker(sc.opts.PingInterval)
		pingC = pingTicker.C
		defer pingTicker.Stop()
	}

	scratch := make([]byte, 0, 4096)

	for {
		select {
		case <-sc.closeCh:
			return
		case fh := <-sc.writeCh:
			if err := sc.drainAndWrite(fh, scratch); err != nil {
				return
			}
		case <-pingC:
			fh := AcquireFrameHeader()
			p := AcquireFrame(FramePing).(*Ping)
			fh.SetBody(p)
			if err := fh.WriteTo(sc.bw, scratch); err != nil {
				ReleaseFrameHeader(fh)
				return
			}
			ReleaseFrameHeader(fh)
			_ = sc.bw.Flush()
		}
	}
}

// drainAndWrite writes fh then opportunistically drains any frames
// already queued before flushing once, batching writes under load.
func (sc *serverConn) drainAndWrite(fh *FrameHeader, scratch []byte) error {
	err := fh.WriteTo(sc.bw, scratch)
	ReleaseFrameHeader(fh)
	if err != nil {
		return err
	}

	for {
		select {
		case next := <-sc.writeCh:
			if err := next.WriteTo(sc.bw, scratch); err != nil {
				ReleaseFrameHeader(next)
				return err
			}
			ReleaseFrameHeader(next)
		default:
			return sc.bw.Flush()
		}
	}
}
