// Package bufpool provides reusable byte slices for the wire codec and the
// raw transfer streams, keeping per-connection I/O off the allocator.
//
// Two size classes cover the protocol's needs: chunk-sized buffers for raw
// stream copies and frame-sized buffers for encoded messages. Requests
// above the frame class are allocated directly and never pooled, so a
// hostile length prefix cannot pin large buffers in memory.
package bufpool

import "sync"

// Size classes.
const (
	// ChunkClass serves raw stream copies (4 KiB).
	ChunkClass = 4 << 10

	// FrameClass serves encoded message frames (1 MiB).
	FrameClass = 1 << 20
)

var (
	chunkPool = sync.Pool{
		New: func() any {
			buf := make([]byte, ChunkClass)
			return &buf
		},
	}
	framePool = sync.Pool{
		New: func() any {
			buf := make([]byte, FrameClass)
			return &buf
		},
	}
)

// Get returns a byte slice of exactly the requested length. Its capacity
// may be larger, aligned to the pool's size classes. The caller must hand
// the slice back with Put.
func Get(size int) []byte {
	switch {
	case size <= ChunkClass:
		return (*chunkPool.Get().(*[]byte))[:size]
	case size <= FrameClass:
		return (*framePool.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer obtained from Get to its pool. Oversized buffers
// are dropped for the GC to collect. The buffer must not be used after.
func Put(buf []byte) {
	c := cap(buf)
	switch {
	case c == ChunkClass:
		buf = buf[:c]
		chunkPool.Put(&buf)
	case c == FrameClass:
		buf = buf[:c]
		framePool.Put(&buf)
	}
}
