package websocket

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"

	"github.com/valyala/fasthttp"

	"github.com/domsolutions/multiproto/http2/http2utils"
	"github.com/domsolutions/multiproto/protoerr"
)

const handshakeGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ValidateHandshake checks ctx's request against RFC 6455 §4.2.1,
// returning the negotiated subprotocol (empty when none was
// requested) or a Handshake-kind error naming the offending field.
func ValidateHandshake(ctx *fasthttp.RequestCtx) (string, error) {
	if !ctx.IsGet() {
		return "", protoerr.New(protoerr.Handshake, "method must be GET")
	}
	if !containsToken(ctx.Request.Header.Peek("Upgrade"), "websocket") {
		return "", protoerr.New(protoerr.Handshake, "Upgrade header must contain websocket")
	}
	if !containsToken(ctx.Request.Header.Peek("Connection"), "upgrade") {
		return "", protoerr.New(protoerr.Handshake, "Connection header must contain Upgrade")
	}
	if !bytes.Equal(bytes.TrimSpace(ctx.Request.Header.Peek("Sec-WebSocket-Version")), []byte("13")) {
		return "", protoerr.New(protoerr.Handshake, "Sec-WebSocket-Version must be 13")
	}

	key := ctx.Request.Header.Peek("Sec-WebSocket-Key")
	if !validKey(key) {
		return "", protoerr.New(protoerr.Handshake, "Sec-WebSocket-Key must decode to 16 bytes")
	}

	return string(ctx.Request.Header.Peek("Sec-WebSocket-Protocol")), nil
}

func validKey(key []byte) bool {
	decoded, err := base64.StdEncoding.DecodeString(string(key))
	return err == nil && len(decoded) == 16
}

// containsToken reports whether header contains token as a
// comma-separated, whitespace-trimmed, case-insensitive entry —
// tolerating "Connection: keep-alive, Upgrade" as well as the bare
// "Connection: Upgrade" form.
func containsToken(header []byte, token string) bool {
	tok := []byte(token)
	for _, part := range bytes.Split(header, []byte(",")) {
		if http2utils.EqualsFold(bytes.TrimSpace(part), tok) {
			return true
		}
	}
	return false
}

// AcceptKey derives Sec-WebSocket-Accept from the client's
// Sec-WebSocket-Key, RFC 6455 §4.2.2 step 5.
func AcceptKey(key []byte) string {
	h := sha1.New()
	h.Write(key)
	h.Write([]byte(handshakeGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
