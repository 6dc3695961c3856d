package http2

import (
	"time"

	"github.com/valyala/fasthttp"
)

// Logger is the logging seam every component in this module shares,
// matching fasthttp.Logger so a *log.Logger satisfies it directly.
type Logger interface {
	Printf(format string, args ...interface{})
}

// ConnOpts configures one Server-side HTTP/2 connection.
type ConnOpts struct {
	// Handler processes each completed request. Required.
	Handler fasthttp.RequestHandler
	// Logger receives handler panics; connection-fatal protocol errors
	// are returned from ServeConn, not logged. Defaults to the standard
	// library logger.
	Logger Logger
	// MaxFrameSize is the local SETTINGS_MAX_FRAME_SIZE. Defaults to
	// DefaultMaxFrameSize.
	MaxFrameSize uint32
	// MaxConcurrentStreams is the local SETTINGS_MAX_CONCURRENT_STREAMS.
	MaxConcurrentStreams uint32
	// PingInterval is how often an idle connection is PINGed to keep
	// NATs/load-balancers from reaping it. Zero selects the 30s
	// default; a negative value disables keepalive pings.
	PingInterval time.Duration
	// SettingsTimeout defaults to 10s and is stored on the connection,
	// but the engine does not enforce it: the peer's ACK of the local
	// SETTINGS is recorded, and a missing ACK never fails the
	// connection with SETTINGS_TIMEOUT.
	SettingsTimeout time.Duration
	// MaxPadding is accepted but unused: HEADERS and DATA frames are
	// written without padding.
	MaxPadding int
}

func (o *ConnOpts) defaults() {
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.MaxConcurrentStreams == 0 {
		o.MaxConcurrentStreams = DefaultMaxConcurrentStreams
	}
	if o.PingInterval == 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.SettingsTimeout == 0 {
		o.SettingsTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = defaultLogger{}
	}
}

type defaultLogger struct{}

func (defaultLogger) Printf(format string, args ...interface{}) {
	stdLogPrintf(format, args...)
}

// connState tracks the connection-level SETTINGS/window/GOAWAY state
// shared by the read and write loops of one serverConn.
type connState struct {
	local *Settings
	peer  *Settings

	sendWindow int64 // this side's budget to send DATA, connection-wide
	recvWindow int64

	goAwaySent bool
	goAwayRecv bool

	settingsAcked bool
}

func newConnState(local *Settings) *connState {
	return &connState{
		local:      local,
		peer:       defaultSettings(),
		sendWindow: DefaultWindowSize,
		recvWindow: DefaultWindowSize,
	}
}
