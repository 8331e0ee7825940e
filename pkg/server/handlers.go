package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftfs/driftfs/internal/bytesize"
	"github.com/driftfs/driftfs/pkg/wire"
)

// handleList enumerates regular files directly under the user directory.
// Enumeration order is whatever the filesystem yields.
func (c *session) handleList() (string, error) {
	names, err := listFiles(c.userDir)
	if err != nil {
		c.log.Error("List failed", "error", err)
		return c.respondError("Failed to list files")
	}
	return c.respond(&wire.Message{Status: wire.StatusSuccess, Files: names})
}

// handleUpload receives the declared number of raw bytes into a new file.
//
// The client streams the bytes unconditionally right after the command
// frame, so every rejection path must drain them first to keep the channel
// in sync. A truncated stream is a transport error: the session ends and
// the partial file stays on disk.
func (c *session) handleUpload(msg *wire.Message) (string, error) {
	if msg.Size < 0 {
		return c.respondError(fmt.Sprintf("Invalid size: %d", msg.Size))
	}

	name, err := cleanName(msg.Filename)
	if err != nil {
		if derr := wire.Discard(c.conn, msg.Size); derr != nil {
			return "", derr
		}
		return c.respondError("Invalid filename")
	}

	f, err := os.Create(filepath.Join(c.userDir, name))
	if err != nil {
		c.log.Error("Upload create failed", "filename", name, "error", err)
		if derr := wire.Discard(c.conn, msg.Size); derr != nil {
			return "", derr
		}
		return c.respondError("Failed to create file")
	}

	received, err := wire.CopyStream(f, c.conn, msg.Size, nil)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if c.server.metrics != nil {
		c.server.metrics.RecordBytesTransferred("upload", received)
	}
	if err != nil {
		c.log.Warn("Upload aborted", "filename", name, "received", received, "declared", msg.Size, "error", err)
		return "", err
	}

	c.log.Info("File uploaded", "filename", name, "size", bytesize.Format(received))
	return c.respond(&wire.Message{Status: wire.StatusSuccess, Detail: "File uploaded successfully"})
}

// handleDownload answers with the file size and then streams the raw bytes.
func (c *session) handleDownload(msg *wire.Message) (string, error) {
	name, err := cleanName(msg.Filename)
	if err != nil {
		return c.respondError("Invalid filename")
	}

	path := filepath.Join(c.userDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return c.respondError("File not found")
	}

	f, err := os.Open(path)
	if err != nil {
		c.log.Error("Download open failed", "filename", name, "error", err)
		return c.respondError("Failed to open file")
	}
	defer f.Close()

	size := info.Size()
	if err := wire.Send(c.conn, &wire.Message{Status: wire.StatusSuccess, Size: size}); err != nil {
		return "", err
	}

	sent, err := wire.CopyStream(c.conn, f, size, nil)
	if c.server.metrics != nil {
		c.server.metrics.RecordBytesTransferred("download", sent)
	}
	if err != nil {
		// The size was already framed; a short file body cannot be
		// recovered from, so the session ends.
		c.log.Warn("Download aborted", "filename", name, "sent", sent, "declared", size, "error", err)
		return "", err
	}

	c.log.Info("File downloaded", "filename", name, "size", bytesize.Format(size))
	return wire.StatusSuccess, nil
}

// handleView returns up to the first PreviewSize bytes of the file,
// decoded as text with invalid byte sequences dropped.
func (c *session) handleView(msg *wire.Message) (string, error) {
	name, err := cleanName(msg.Filename)
	if err != nil {
		return c.respondError("Invalid filename")
	}

	f, err := os.Open(filepath.Join(c.userDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return c.respondError("File not found")
		}
		c.log.Error("View open failed", "filename", name, "error", err)
		return c.respondError("Failed to open file")
	}
	defer f.Close()

	buf := make([]byte, wire.PreviewSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && !errors.Is(err, io.ErrUnexpectedEOF) {
		c.log.Error("View read failed", "filename", name, "error", err)
		return c.respondError("Failed to read file")
	}

	preview := strings.ToValidUTF8(string(buf[:n]), "")
	return c.respond(&wire.Message{Status: wire.StatusSuccess, Preview: preview})
}

// handleDelete removes the file if present.
func (c *session) handleDelete(msg *wire.Message) (string, error) {
	name, err := cleanName(msg.Filename)
	if err != nil {
		return c.respondError("Invalid filename")
	}

	if err := os.Remove(filepath.Join(c.userDir, name)); err != nil {
		if os.IsNotExist(err) {
			return c.respondError("File not found")
		}
		c.log.Error("Delete failed", "filename", name, "error", err)
		return c.respondError("Failed to delete file")
	}

	c.log.Info("File deleted", "filename", name)
	return c.respond(&wire.Message{Status: wire.StatusSuccess, Detail: "File deleted successfully"})
}
