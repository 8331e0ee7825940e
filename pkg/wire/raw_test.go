package wire

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyStreamExactSize(t *testing.T) {
	// Not a multiple of ChunkSize, so the final read is short.
	data := make([]byte, 10000)
	_, err := rand.Read(data)
	require.NoError(t, err)

	var dst bytes.Buffer
	n, err := CopyStream(&dst, bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, dst.Bytes())
}

func TestCopyStreamStopsAtDeclaredSize(t *testing.T) {
	// Extra bytes past the declared size belong to the next frame and must
	// not be consumed.
	src := bytes.NewReader([]byte("0123456789tail"))

	var dst bytes.Buffer
	n, err := CopyStream(&dst, src, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, "0123456789", dst.String())
	assert.Equal(t, 4, src.Len())
}

func TestCopyStreamTruncation(t *testing.T) {
	var dst bytes.Buffer
	n, err := CopyStream(&dst, bytes.NewReader(make([]byte, 100)), 200, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	// The partial data is still written.
	assert.Equal(t, int64(100), n)
	assert.Equal(t, 100, dst.Len())
}

func TestCopyStreamProgress(t *testing.T) {
	size := int64(ChunkSize*2 + 100)

	var reports []int64
	var lastTotal int64
	progress := func(transferred, total int64) {
		reports = append(reports, transferred)
		lastTotal = total
	}

	var dst bytes.Buffer
	_, err := CopyStream(&dst, bytes.NewReader(make([]byte, size)), size, progress)
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	assert.Equal(t, size, lastTotal)
	assert.Equal(t, size, reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i], reports[i-1])
	}
}

func TestCopyStreamZeroSize(t *testing.T) {
	var dst bytes.Buffer
	n, err := CopyStream(&dst, bytes.NewReader(nil), 0, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDiscard(t *testing.T) {
	src := bytes.NewReader([]byte("discardedkeep"))
	require.NoError(t, Discard(src, 9))
	rest, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(rest))
}
