package http2

import "sort"

// Streams is a per-connection registry of live streams, kept sorted
// by id so lookups and the "id must increase monotonically" check
// are both cheap. Accessed only from the owning connection's
// goroutine — never shared across connections.
type Streams struct {
	list         []*Stream
	lastOpenedID uint32
}

// Insert adds s to the registry, keeping it sorted by id.
func (strms *Streams) Insert(s *Stream) {
	i := sort.Search(len(strms.list), func(i int) bool {
		return strms.list[i].id >= s.id
	})

	strms.list = append(strms.list, nil)
	copy(strms.list[i+1:], strms.list[i:])
	strms.list[i] = s

	if s.id > strms.lastOpenedID {
		strms.lastOpenedID = s.id
	}
}

// Get returns the stream with the given id, or nil.
func (strms *Streams) Get(id uint32) *Stream {
	i := sort.Search(len(strms.list), func(i int) bool {
		return strms.list[i].id >= id
	})
	if i < len(strms.list) && strms.list[i].id == id {
		return strms.list[i]
	}
	return nil
}

// Del removes and returns the stream with the given id, or nil.
func (strms *Streams) Del(id uint32) *Stream {
	i := sort.Search(len(strms.list), func(i int) bool {
		return strms.list[i].id >= id
	})
	if i < len(strms.list) && strms.list[i].id == id {
		s := strms.list[i]
		strms.list = append(strms.list[:i], strms.list[i+1:]...)
		return s
	}
	return nil
}

// Len returns the number of tracked streams (any state).
func (strms *Streams) Len() int { return len(strms.list) }

// Each calls fn for every tracked stream, in ascending id order. fn
// must not mutate the registry.
func (strms *Streams) Each(fn func(*Stream)) {
	for _, s := range strms.list {
		fn(s)
	}
}

// EachErr calls fn for every tracked stream, in ascending id order,
// stopping and returning the first non-nil error fn produces. fn must
// not mutate the registry.
func (strms *Streams) EachErr(fn func(*Stream) error) error {
	for _, s := range strms.list {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

// LastOpenedID is the highest stream id ever inserted, used both for
// GOAWAY's last-stream-id and to reject a HEADERS frame whose stream
// id does not exceed it (stream ids must increase monotonically).
func (strms *Streams) LastOpenedID() uint32 { return strms.lastOpenedID }
