package wire

import (
	"fmt"
	"io"

	"github.com/driftfs/driftfs/pkg/bufpool"
)

// ChunkSize is the read/write granularity for raw transfer streams. It
// bounds per-step memory use; TCP flow control provides the backpressure.
const ChunkSize = 4096

// ProgressFunc is invoked after each chunk of a raw transfer with the total
// bytes moved so far and the declared stream size.
type ProgressFunc func(transferred, total int64)

// CopyStream moves exactly size raw bytes from src to dst in ChunkSize
// chunks, reporting progress after each chunk when progress is non-nil.
//
// It returns the number of bytes actually written to dst. If src ends
// before size bytes arrive the transfer is truncated: the error wraps
// io.ErrUnexpectedEOF and dst keeps whatever was already written.
func CopyStream(dst io.Writer, src io.Reader, size int64, progress ProgressFunc) (int64, error) {
	buf := bufpool.Get(ChunkSize)
	defer bufpool.Put(buf)

	var done int64
	for done < size {
		want := int64(ChunkSize)
		if remaining := size - done; remaining < want {
			want = remaining
		}

		n, err := src.Read(buf[:want])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return done, fmt.Errorf("write stream: %w", werr)
			}
			done += int64(n)
			if progress != nil {
				progress(done, size)
			}
		}
		if err != nil {
			if err == io.EOF {
				if done < size {
					return done, fmt.Errorf("stream truncated (%d of %d bytes): %w", done, size, io.ErrUnexpectedEOF)
				}
				break
			}
			return done, fmt.Errorf("read stream: %w", err)
		}
	}
	return done, nil
}

// Discard consumes and throws away exactly size raw bytes from r. The
// dispatcher uses it to stay in sync with the channel when an upload is
// rejected: the client streams the declared bytes unconditionally, so they
// must be drained before the error response is framed.
func Discard(r io.Reader, size int64) error {
	_, err := CopyStream(io.Discard, r, size, nil)
	return err
}
