// Package bufpool centralizes byte-buffer reuse across the connection
// read loop, the body-drain and multipart read chunks, and the response
// body copy. Grounded on pkg/shockwave/http11/pool.go's pooling concern,
// but moved onto the pack's own github.com/valyala/bytebufferpool
// instead of a hand-rolled sync.Pool — the dependency is already in the
// teacher's go.mod and this is exactly the problem it's built for.
package bufpool

import "github.com/valyala/bytebufferpool"

var pool bytebufferpool.Pool

// Get returns a pooled *bytebufferpool.ByteBuffer reset to zero length.
func Get() *bytebufferpool.ByteBuffer {
	return pool.Get()
}

// Put returns b to the pool. Callers must not use b again afterward.
func Put(b *bytebufferpool.ByteBuffer) {
	pool.Put(b)
}

// Scratch returns a pooled byte slice of exactly n bytes for transient
// use as a read or copy chunk (the connection's socket-read buffer, the
// body-drain and multipart read chunks, and the response body copy
// buffer all go through here). Call Put on the returned buffer's owner when done —
// Scratch hands back the slice directly since callers only need []byte,
// not the ByteBuffer's string-building API.
func Scratch(n int) (buf *bytebufferpool.ByteBuffer, b []byte) {
	buf = Get()
	if cap(buf.B) < n {
		buf.B = make([]byte, n)
	}
	buf.B = buf.B[:n]
	return buf, buf.B
}
