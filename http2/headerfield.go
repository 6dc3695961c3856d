package http2

import "sync"

// HeaderField is a single decoded (or to-be-encoded) HPACK header:
// name/value pair plus the "never index" sensitivity bit RFC 7541
// reserves for values like Cookie/Authorization.
type HeaderField struct {
	key       []byte
	value     []byte
	sensitive bool
}

var headerFieldPool = sync.Pool{
	New: func() interface{} { return &HeaderField{} },
}

// AcquireHeaderField returns a pooled, zeroed HeaderField.
func AcquireHeaderField() *HeaderField {
	return headerFieldPool.Get().(*HeaderField)
}

// ReleaseHeaderField returns hf to the pool.
func ReleaseHeaderField(hf *HeaderField) {
	hf.key = hf.key[:0]
	hf.value = hf.value[:0]
	hf.sensitive = false
	headerFieldPool.Put(hf)
}

func (hf *HeaderField) Key() string   { return string(hf.key) }
func (hf *HeaderField) Value() string { return string(hf.value) }
func (hf *HeaderField) KeyBytes() []byte   { return hf.key }
func (hf *HeaderField) ValueBytes() []byte { return hf.value }
func (hf *HeaderField) Sensitive() bool    { return hf.sensitive }

// Set assigns key/value, copying into hf's own backing arrays so the
// caller's buffers may be reused immediately.
func (hf *HeaderField) Set(key, value string) {
	hf.key = append(hf.key[:0], key...)
	hf.value = append(hf.value[:0], value...)
}

// SetBytes is Set without the string conversion allocation.
func (hf *HeaderField) SetBytes(key, value []byte) {
	hf.key = append(hf.key[:0], key...)
	hf.value = append(hf.value[:0], value...)
}

func (hf *HeaderField) SetSensitive(v bool) { hf.sensitive = v }

// IsPseudo reports whether this is an HTTP/2 pseudo-header
// (":method", ":path", ":scheme", ":authority", ":status").
func (hf *HeaderField) IsPseudo() bool {
	return len(hf.key) > 0 && hf.key[0] == ':'
}

// Size is the RFC 7541 §4.1 HPACK dynamic-table entry size: name
// length + value length + 32 bytes of overhead.
func (hf *HeaderField) Size() int {
	return len(hf.key) + len(hf.value) + 32
}
