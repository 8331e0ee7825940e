package auth

import (
	"errors"
	"fmt"
	"io"

	"github.com/driftfs/driftfs/pkg/wire"
)

// ErrAuthFailed is returned when the peer's credentials are rejected.
// The caller must close the channel: there is no retry within a
// connection, the client has to reconnect.
var ErrAuthFailed = errors.New("authentication failed")

// Authenticate runs the server side of the authentication prelude.
//
// It receives exactly one framed message, expects username and password
// fields, and answers with status=success or status=failed. Exactly one
// attempt is allowed; on mismatch, a missing field, or any channel error
// the session must not enter the command loop.
func Authenticate(channel io.ReadWriter, store *Store) (string, error) {
	msg, err := wire.Receive(channel)
	if err != nil {
		if err == io.EOF {
			return "", fmt.Errorf("peer closed before authenticating: %w", io.EOF)
		}
		return "", fmt.Errorf("receive auth message: %w", err)
	}

	if msg.Username == "" || !store.Verify(msg.Username, msg.Password) {
		// Best effort: the peer may already be gone.
		_ = wire.Send(channel, &wire.Message{Status: wire.StatusFailed})
		return "", ErrAuthFailed
	}

	if err := wire.Send(channel, wire.Success()); err != nil {
		return "", fmt.Errorf("send auth response: %w", err)
	}
	return msg.Username, nil
}
