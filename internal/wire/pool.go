package wire

import "sync"

// Buffer pooling for frame bodies. Every request (and its embedded tensor
// payload) arrives as one length-prefixed frame decoded once per connection
// read; pooling the read target avoids a hot-path allocation per frame for
// the common sizes (a single 224x224x3 uint8 image, a few seconds of mono
// float32 audio, and so on). Uses size-bucketed pools with power-of-2 sizes
// (128KB, 256KB, 512KB, 1MB, 4MB) to balance memory efficiency with
// allocation reduction. Payloads larger than the top bucket fall back to a
// plain make.
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.

const (
	size128k = 128 * 1024
	size256k = 256 * 1024
	size512k = 512 * 1024
	size1m   = 1024 * 1024
	size4m   = 4 * 1024 * 1024
)

var globalPool = struct {
	pool128k sync.Pool
	pool256k sync.Pool
	pool512k sync.Pool
	pool1m   sync.Pool
	pool4m   sync.Pool
}{
	pool128k: sync.Pool{New: func() any { b := make([]byte, size128k); return &b }},
	pool256k: sync.Pool{New: func() any { b := make([]byte, size256k); return &b }},
	pool512k: sync.Pool{New: func() any { b := make([]byte, size512k); return &b }},
	pool1m:   sync.Pool{New: func() any { b := make([]byte, size1m); return &b }},
	pool4m:   sync.Pool{New: func() any { b := make([]byte, size4m); return &b }},
}

// GetFrameBuffer returns a pooled buffer of at least the requested size.
// Callers that obtain a frame body via ReadFrame should call ReleaseFrameBuffer
// once they are done with it, unless the buffer escaped the bucket range.
func GetFrameBuffer(size int) []byte {
	switch {
	case size <= size128k:
		return (*globalPool.pool128k.Get().(*[]byte))[:size]
	case size <= size256k:
		return (*globalPool.pool256k.Get().(*[]byte))[:size]
	case size <= size512k:
		return (*globalPool.pool512k.Get().(*[]byte))[:size]
	case size <= size1m:
		return (*globalPool.pool1m.Get().(*[]byte))[:size]
	case size <= size4m:
		return (*globalPool.pool4m.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// ReleaseFrameBuffer returns a buffer obtained from GetFrameBuffer to the
// pool. Buffers whose capacity doesn't match a bucket exactly (the make()
// fallback above the top bucket) are dropped.
func ReleaseFrameBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size128k:
		globalPool.pool128k.Put(&buf)
	case size256k:
		globalPool.pool256k.Put(&buf)
	case size512k:
		globalPool.pool512k.Put(&buf)
	case size1m:
		globalPool.pool1m.Put(&buf)
	case size4m:
		globalPool.pool4m.Put(&buf)
	}
}
