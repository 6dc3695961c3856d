package http2

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
)

// Client is a minimal single-connection HTTP/2 client: it speaks just
// enough of the protocol (preface, SETTINGS exchange, one
// HEADERS(+CONTINUATION)/DATA request per call) to drive this
// module's own serverconn and dispatcher tests, the way the teacher's
// own client.go drives its tests against serverConn.
type Client struct {
	c  net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	enc *HPACK
	dec *HPACK

	nextStreamID uint32
}

// Response is the result of one request/response exchange.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Dial opens a plaintext h2c connection to addr and completes the
// client side of the connection preface/SETTINGS handshake.
func Dial(addr string) (*Client, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newClient(c)
}

// DialConn wraps an already-established net.Conn (e.g. one side of an
// in-memory pipe in a test) as a Client.
func DialConn(c net.Conn) (*Client, error) {
	return newClient(c)
}

func newClient(c net.Conn) (*Client, error) {
	cl := &Client{
		c:            c,
		br:           bufio.NewReaderSize(c, 16384),
		bw:           bufio.NewWriterSize(c, 16384),
		enc:          AcquireHPACK(),
		dec:          AcquireHPACK(),
		nextStreamID: 1,
	}

	if _, err := cl.bw.WriteString(FramePreface); err != nil {
		return nil, err
	}

	fh := AcquireFrameHeader()
	fh.SetBody(acquireSettings())
	if err := fh.WriteTo(cl.bw, nil); err != nil {
		ReleaseFrameHeader(fh)
		return nil, err
	}
	ReleaseFrameHeader(fh)

	if err := cl.bw.Flush(); err != nil {
		return nil, err
	}

	// Consume the server's own SETTINGS frame (and its ACK of ours,
	// if it arrives first) before handing control back to the caller.
	for i := 0; i < 2; i++ {
		fh, err := ReadFrameFrom(cl.br, DefaultMaxFrameSize)
		if err != nil {
			return nil, err
		}
		_, isSettings := fh.Body().(*Settings)
		ack := fh.Flags().Has(FlagAck)
		ReleaseFrameHeader(fh)
		if isSettings && !ack {
			if err := cl.ackSettings(); err != nil {
				return nil, err
			}
			break
		}
	}

	return cl, nil
}

func (cl *Client) ackSettings() error {
	fh := AcquireFrameHeader()
	fh.SetBody(acquireSettings())
	fh.SetFlags(FlagAck)
	err := fh.WriteTo(cl.bw, nil)
	ReleaseFrameHeader(fh)
	if err != nil {
		return err
	}
	return cl.bw.Flush()
}

// Close closes the underlying connection and releases HPACK state.
func (cl *Client) Close() error {
	ReleaseHPACK(cl.enc)
	ReleaseHPACK(cl.dec)
	return cl.c.Close()
}

// Get issues a GET request for path on a fresh client-initiated stream
// and blocks for the full response.
func (cl *Client) Get(authority, path string) (*Response, error) {
	return cl.Do("GET", authority, path, nil)
}

// Do issues a request with the given method/authority/path and
// optional body, and blocks for the full response.
func (cl *Client) Do(method, authority, path string, body []byte) (*Response, error) {
	streamID := cl.nextStreamID
	cl.nextStreamID += 2

	if err := cl.writeRequest(streamID, method, authority, path, body); err != nil {
		return nil, err
	}

	return cl.readResponse(streamID)
}

func (cl *Client) writeRequest(streamID uint32, method, authority, path string, body []byte) error {
	h := AcquireFrame(FrameHeaders).(*Headers)
	hf := AcquireHeaderField()

	set := func(k, v string) {
		hf.Set(k, v)
		cl.enc.AppendHeaderField(h, hf, k[0] == ':')
	}
	set(":method", method)
	set(":scheme", "http")
	set(":authority", authority)
	set(":path", path)

	ReleaseHeaderField(hf)

	h.SetEndHeaders(true)
	h.SetEndStream(len(body) == 0)

	fh := AcquireFrameHeader()
	fh.SetStream(streamID)
	fh.SetBody(h)

	if err := fh.WriteTo(cl.bw, nil); err != nil {
		ReleaseFrameHeader(fh)
		return err
	}
	ReleaseFrameHeader(fh)

	if len(body) > 0 {
		d := AcquireFrame(FrameData).(*Data)
		d.SetPayload(body)
		d.SetEndStream(true)

		dfh := AcquireFrameHeader()
		dfh.SetStream(streamID)
		dfh.SetBody(d)
		if err := dfh.WriteTo(cl.bw, nil); err != nil {
			ReleaseFrameHeader(dfh)
			return err
		}
		ReleaseFrameHeader(dfh)
	}

	return cl.bw.Flush()
}

func (cl *Client) readResponse(streamID uint32) (*Response, error) {
	resp := &Response{Headers: make(map[string]string)}
	var headerBlock []byte
	headersDone := false
	bodyDone := false

	for !bodyDone {
		fh, err := ReadFrameFrom(cl.br, DefaultMaxFrameSize)
		if err != nil {
			return nil, err
		}

		ack := fh.Flags().Has(FlagAck)

		switch body := fh.Body().(type) {
		case *Settings:
			if !ack {
				ReleaseFrameHeader(fh)
				if err := cl.ackSettings(); err != nil {
					return nil, err
				}
				continue
			}
		case *WindowUpdate:
		case *Ping:
			// non-ACK PINGs addressed to us would need an echo, but
			// this client never drives a server that pings first in
			// tests; ignore either way.
		case *GoAway:
			ReleaseFrameHeader(fh)
			return nil, fmt.Errorf("http2: GOAWAY: %s", body.Debug())
		case *Headers:
			if fh.Stream() == streamID {
				headerBlock = append(headerBlock, body.HeaderBlock()...)
				if body.EndHeaders() {
					headersDone = true
					if err := cl.parseHeaderBlock(resp, headerBlock); err != nil {
						ReleaseFrameHeader(fh)
						return nil, err
					}
				}
				if body.EndStream() {
					bodyDone = true
				}
			}
		case *Continuation:
			if fh.Stream() == streamID {
				headerBlock = append(headerBlock, body.HeaderBlock()...)
				if body.EndHeaders() {
					headersDone = true
					if err := cl.parseHeaderBlock(resp, headerBlock); err != nil {
						ReleaseFrameHeader(fh)
						return nil, err
					}
				}
			}
		case *Data:
			if fh.Stream() == streamID {
				resp.Body = append(resp.Body, body.Payload()...)
				if body.EndStream() {
					bodyDone = true
				}
			}
			// Return the consumed bytes to the server's connection and
			// stream send windows so bodies over 65,535 bytes complete.
			if n := uint32(len(body.Payload())); n > 0 {
				for _, id := range []uint32{0, fh.Stream()} {
					wfh := AcquireFrameHeader()
					wfh.SetStream(id)
					wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
					wu.SetIncrement(n)
					wfh.SetBody(wu)
					_ = wfh.WriteTo(cl.bw, nil) // a write error resurfaces from Flush
					ReleaseFrameHeader(wfh)
				}
				if err := cl.bw.Flush(); err != nil {
					ReleaseFrameHeader(fh)
					return nil, err
				}
			}
		}

		ReleaseFrameHeader(fh)
	}

	if !headersDone {
		return nil, fmt.Errorf("http2: stream %d closed before headers completed", streamID)
	}

	return resp, nil
}

func (cl *Client) parseHeaderBlock(resp *Response, block []byte) error {
	for len(block) > 0 {
		hf, rest, err := cl.dec.DecodeField(block)
		if err != nil {
			return err
		}
		block = rest

		if hf.IsPseudo() && hf.Key() == ":status" {
			resp.Status, _ = strconv.Atoi(hf.Value())
		} else if !hf.IsPseudo() {
			resp.Headers[hf.Key()] = hf.Value()
		}
		ReleaseHeaderField(hf)
	}
	return nil
}
