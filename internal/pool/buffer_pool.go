// Package pool provides reusable byte buffers for the hot paths of the
// pipeline, mainly the Ogg page reader which performs many small reads
// per file.
package pool

import "sync"

const (
	// SmallBufferSize covers header and lacing-table reads.
	SmallBufferSize = 4 * 1024
	// PageBufferSize covers a full Ogg page payload, which is bounded
	// at 255 segments of 255 bytes.
	PageBufferSize = 64 * 1024
)

var (
	smallPool = sync.Pool{
		New: func() any { return make([]byte, SmallBufferSize) },
	}
	pagePool = sync.Pool{
		New: func() any { return make([]byte, PageBufferSize) },
	}
)

// GetBuffer returns a buffer with length size. Requests above
// PageBufferSize are allocated directly and never pooled.
func GetBuffer(size int) []byte {
	switch {
	case size <= SmallBufferSize:
		return smallPool.Get().([]byte)[:size]
	case size <= PageBufferSize:
		return pagePool.Get().([]byte)[:size]
	default:
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer obtained from GetBuffer to its pool.
func PutBuffer(buf []byte) {
	switch cap(buf) {
	case SmallBufferSize:
		smallPool.Put(buf[:cap(buf)])
	case PageBufferSize:
		pagePool.Put(buf[:cap(buf)])
	}
}
