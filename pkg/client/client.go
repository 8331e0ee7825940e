// Package client implements the DriftFS client driver: it frames the same
// protocol messages as the server dispatcher and drives the raw chunked
// byte streams for upload and download, reporting transfer progress.
package client

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/driftfs/driftfs/pkg/wire"
)

// ErrAuthFailed is returned by Login when the server rejects the
// credentials. The server closes the connection afterwards; the client
// must reconnect to retry.
var ErrAuthFailed = errors.New("authentication failed")

// Client is one authenticated connection to a DriftFS server. It is not
// safe for concurrent use: the protocol is strictly request/response on a
// single channel.
type Client struct {
	conn net.Conn
}

// Dial connects to a DriftFS server at addr ("host:port"). The returned
// client must Login before issuing commands.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Login performs the authentication prelude. On rejection it returns
// ErrAuthFailed; the connection is no longer usable either way on error.
func (c *Client) Login(username, password string) error {
	if err := wire.Send(c.conn, &wire.Message{Username: username, Password: password}); err != nil {
		return err
	}

	resp, err := wire.Receive(c.conn)
	if err != nil {
		return fmt.Errorf("receive auth response: %w", err)
	}
	if resp.Status != wire.StatusSuccess {
		return ErrAuthFailed
	}
	return nil
}

// roundTrip frames a command and receives the framed response.
func (c *Client) roundTrip(req *wire.Message) (*wire.Message, error) {
	if err := wire.Send(c.conn, req); err != nil {
		return nil, err
	}
	return wire.Receive(c.conn)
}

// LocalError is a client-side filesystem failure (unreadable source file,
// unwritable download directory). The channel stays in sync and the
// session remains usable.
type LocalError struct {
	Err error
}

func (e *LocalError) Error() string { return e.Err.Error() }

func (e *LocalError) Unwrap() error { return e.Err }

// ServerError is a framed rejection from the server. The channel stays
// usable after one: only transport errors end the session.
type ServerError struct {
	Status string
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return "server: " + e.Detail
	}
	return fmt.Sprintf("server returned status %q", e.Status)
}

// serverError converts a non-success response into an error.
func serverError(resp *wire.Message) error {
	return &ServerError{Status: resp.Status, Detail: resp.Detail}
}

// List returns the filenames stored in the user's directory.
func (c *Client) List() ([]string, error) {
	resp, err := c.roundTrip(&wire.Message{Command: wire.CmdList})
	if err != nil {
		return nil, err
	}
	if resp.Status != wire.StatusSuccess {
		return nil, serverError(resp)
	}
	return resp.Files, nil
}

// Upload sends the local file at path to the server under its base name.
// The declared size is the file's current size; the raw bytes follow the
// command frame immediately, in bounded chunks.
func (c *Client) Upload(path string, progress wire.ProgressFunc) error {
	f, err := os.Open(path)
	if err != nil {
		// Nothing was framed yet; the session stays usable.
		return &LocalError{Err: fmt.Errorf("open %s: %w", path, err)}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &LocalError{Err: fmt.Errorf("stat %s: %w", path, err)}
	}
	size := info.Size()

	req := &wire.Message{
		Command:  wire.CmdUpload,
		Filename: filepath.Base(path),
		Size:     size,
	}
	if err := wire.Send(c.conn, req); err != nil {
		return err
	}

	if _, err := wire.CopyStream(c.conn, f, size, progress); err != nil {
		return fmt.Errorf("stream file: %w", err)
	}

	resp, err := wire.Receive(c.conn)
	if err != nil {
		return fmt.Errorf("receive upload response: %w", err)
	}
	if resp.Status != wire.StatusSuccess {
		return serverError(resp)
	}
	return nil
}

// Download fetches filename into destDir (created if missing) and returns
// the path of the written file. The server's success response declares the
// size; exactly that many raw bytes are read off the channel.
func (c *Client) Download(filename, destDir string, progress wire.ProgressFunc) (string, error) {
	resp, err := c.roundTrip(&wire.Message{Command: wire.CmdDownload, Filename: filename})
	if err != nil {
		return "", err
	}
	if resp.Status != wire.StatusSuccess {
		return "", serverError(resp)
	}

	// The server streams the declared bytes right after its response, so
	// local failures must drain them to keep the channel in sync.
	if err := os.MkdirAll(destDir, 0755); err != nil {
		if derr := wire.Discard(c.conn, resp.Size); derr != nil {
			return "", derr
		}
		return "", &LocalError{Err: fmt.Errorf("create download directory: %w", err)}
	}

	path := filepath.Join(destDir, filename)
	f, err := os.Create(path)
	if err != nil {
		if derr := wire.Discard(c.conn, resp.Size); derr != nil {
			return "", derr
		}
		return "", &LocalError{Err: fmt.Errorf("create %s: %w", path, err)}
	}

	_, err = wire.CopyStream(f, c.conn, resp.Size, progress)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return path, fmt.Errorf("receive file: %w", err)
	}
	return path, nil
}

// View returns up to the first 1024 bytes of the file as text.
func (c *Client) View(filename string) (string, error) {
	resp, err := c.roundTrip(&wire.Message{Command: wire.CmdView, Filename: filename})
	if err != nil {
		return "", err
	}
	if resp.Status != wire.StatusSuccess {
		return "", serverError(resp)
	}
	return resp.Preview, nil
}

// Delete removes the file from the user's directory.
func (c *Client) Delete(filename string) error {
	resp, err := c.roundTrip(&wire.Message{Command: wire.CmdDelete, Filename: filename})
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusSuccess {
		return serverError(resp)
	}
	return nil
}
