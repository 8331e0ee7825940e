package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLength(t *testing.T) {
	for _, size := range []int{0, 1, 100, ChunkClass, ChunkClass + 1, FrameClass} {
		buf := Get(size)
		assert.Len(t, buf, size)
		Put(buf)
	}
}

func TestGetSizeClasses(t *testing.T) {
	small := Get(100)
	assert.Equal(t, ChunkClass, cap(small))
	Put(small)

	medium := Get(ChunkClass + 1)
	assert.Equal(t, FrameClass, cap(medium))
	Put(medium)
}

func TestOversizedNotPooled(t *testing.T) {
	buf := Get(FrameClass + 1)
	assert.Len(t, buf, FrameClass+1)
	assert.Equal(t, FrameClass+1, cap(buf))
	Put(buf) // no-op, must not panic
}

func TestReuse(t *testing.T) {
	buf := Get(ChunkClass)
	buf[0] = 0xAA
	Put(buf)

	// A fresh Get may hand back the same backing array; either way it must
	// have the requested length.
	again := Get(ChunkClass)
	assert.Len(t, again, ChunkClass)
	Put(again)
}
