package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/driftfs/driftfs/pkg/bufpool"
)

// MaxFrameSize caps the decoded payload length. A hostile peer can put any
// value in the length prefix; frames are small (metadata and previews only),
// so anything above this is treated as a protocol error rather than an
// allocation request.
const MaxFrameSize = 1 << 20 // 1MiB

// headerSize is the length prefix size in bytes.
const headerSize = 4

// ErrFrameTooLarge is returned when a frame's declared or encoded length
// exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Send encodes msg as JSON, prefixes it with its 4-byte big-endian length,
// and writes both as a single write. Serializing writes is the caller's
// responsibility when multiple goroutines share the writer.
func Send(w io.Writer, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	// Prefix and payload go out in one buffer so the frame is a single
	// logical write on the channel.
	buf := bufpool.Get(headerSize + len(payload))
	defer bufpool.Put(buf)
	binary.BigEndian.PutUint32(buf[:headerSize], uint32(len(payload)))
	copy(buf[headerSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Receive reads one framed message from r.
//
// An orderly close (the peer disconnected before any length bytes arrived)
// is reported as io.EOF so callers can distinguish it from corruption.
// A connection that closes mid-frame is a hard error wrapping
// io.ErrUnexpectedEOF, and an undecodable payload is a hard error: neither
// allows resynchronizing the byte stream.
func Receive(r io.Reader) (*Message, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			// Clean disconnect between frames.
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated frame header: %w", err)
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: peer declared %d bytes", ErrFrameTooLarge, length)
	}

	payload := bufpool.Get(int(length))
	defer bufpool.Put(payload)
	if n, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated frame body (%d of %d bytes): %w", n, length, io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &msg, nil
}
