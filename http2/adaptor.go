package http2

import (
	"strconv"

	"github.com/valyala/fasthttp"
)

// decodeRequestHeaders walks the assembled HPACK header block for a
// stream, mapping HTTP/2 pseudo-headers onto req and regular headers
// onto req.Header, in arrival order.
func decodeRequestHeaders(hp *HPACK, block []byte, req *fasthttp.Request) error {
	var method, path, scheme, authority []byte

	for len(block) > 0 {
		hf, rest, err := hp.DecodeField(block)
		if err != nil {
			return err
		}
		block = rest

		switch {
		case hf.IsPseudo():
			switch hf.Key() {
			case ":method":
				method = append(method[:0:0], hf.ValueBytes()...)
			case ":path":
				path = append(path[:0:0], hf.ValueBytes()...)
			case ":scheme":
				scheme = append(scheme[:0:0], hf.ValueBytes()...)
			case ":authority":
				authority = append(authority[:0:0], hf.ValueBytes()...)
			}
		default:
			req.Header.AddBytesKV(hf.KeyBytes(), hf.ValueBytes())
		}

		ReleaseHeaderField(hf)
	}

	req.Header.SetMethodBytes(method)
	req.Header.SetRequestURIBytes(path)
	if len(authority) > 0 {
		req.Header.SetHostBytes(authority)
	}
	req.URI().SetSchemeBytes(scheme)

	return nil
}

// encodeResponseHeaders HPACK-encodes res's status and headers into
// dst's header block, in the pseudo-header-first order RFC 7540
// §8.1.2.1 requires.
func encodeResponseHeaders(hp *HPACK, dst headerBlockAppender, res *fasthttp.Response) {
	status := AcquireHeaderField()
	status.Set(":status", strconv.Itoa(res.StatusCode()))
	hp.AppendHeaderField(dst, status, false)
	ReleaseHeaderField(status)

	hf := AcquireHeaderField()
	res.Header.VisitAll(func(k, v []byte) {
		hf.SetBytes(lowercase(k), v)
		hp.AppendHeaderField(dst, hf, false)
	})
	ReleaseHeaderField(hf)

	if res.Header.ContentLength() >= 0 && len(res.Header.Peek("Content-Length")) == 0 {
		cl := AcquireHeaderField()
		cl.Set("content-length", strconv.Itoa(res.Header.ContentLength()))
		hp.AppendHeaderField(dst, cl, false)
		ReleaseHeaderField(cl)
	}
}

func lowercase(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
