package http2

import "github.com/domsolutions/multiproto/protoerr"

func newFrameSizeError(msg string) error {
	return protoerr.HTTP2(protoerr.FrameSize, ErrCodeFrameSize, msg)
}

func newProtocolError(msg string) error {
	return protoerr.HTTP2(protoerr.Protocol, ErrCodeProtocol, msg)
}

func newFlowControlError(msg string) error {
	return protoerr.HTTP2(protoerr.FlowControl, ErrCodeFlowControl, msg)
}

func newCompressionError(msg string) error {
	return protoerr.HTTP2(protoerr.Compression, ErrCodeCompression, msg)
}
