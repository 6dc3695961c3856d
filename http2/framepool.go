package http2

// AcquireFrame returns a pooled, reset Frame body for the given type.
func AcquireFrame(kind FrameType) Frame {
	switch kind {
	case FrameData:
		return dataPool.Get().(*Data)
	case FrameHeaders:
		return headersPool.Get().(*Headers)
	case FramePriority:
		return priorityPool.Get().(*Priority)
	case FrameRstStream:
		return rstStreamPool.Get().(*RstStream)
	case FrameSettings:
		return acquireSettings()
	case FramePushPromise:
		return pushPromisePool.Get().(*PushPromise)
	case FramePing:
		return pingPool.Get().(*Ping)
	case FrameGoAway:
		return goAwayPool.Get().(*GoAway)
	case FrameWindowUpdate:
		return windowUpdatePool.Get().(*WindowUpdate)
	case FrameContinuation:
		return continuationPool.Get().(*Continuation)
	default:
		return &unknownFrame{kind: kind}
	}
}

// ReleaseFrame returns fr to its type's pool.
func ReleaseFrame(fr Frame) {
	fr.Reset()
	switch f := fr.(type) {
	case *Data:
		dataPool.Put(f)
	case *Headers:
		headersPool.Put(f)
	case *Priority:
		priorityPool.Put(f)
	case *RstStream:
		rstStreamPool.Put(f)
	case *Settings:
		releaseSettings(f)
	case *PushPromise:
		pushPromisePool.Put(f)
	case *Ping:
		pingPool.Put(f)
	case *GoAway:
		goAwayPool.Put(f)
	case *WindowUpdate:
		windowUpdatePool.Put(f)
	case *Continuation:
		continuationPool.Put(f)
	case *unknownFrame:
		// not pooled, nothing to do
	}
}

// unknownFrame is the typed variant surfaced to the caller for any
// frame type outside RFC 7540's registry (ignored per spec, but kept
// visible rather than silently swallowed).
type unknownFrame struct {
	kind FrameType
	raw  []byte
}

func (u *unknownFrame) Type() FrameType { return u.kind }
func (u *unknownFrame) Reset()          { u.raw = u.raw[:0] }

func (u *unknownFrame) Deserialize(fh *FrameHeader) error {
	u.raw = append(u.raw[:0], fh.payload...)
	return nil
}

func (u *unknownFrame) Serialize(fh *FrameHeader, dst []byte) []byte {
	return append(dst, u.raw...)
}
