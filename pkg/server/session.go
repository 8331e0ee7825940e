package server

import (
	"io"
	"log/slog"
	"net"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/auth"
	"github.com/driftfs/driftfs/pkg/wire"
)

// session is the per-connection state machine:
//
//	AUTHENTICATING -> SERVING -> CLOSED
//
// CLOSED is reached on channel closure, a malformed frame, or a forced
// close during shutdown. The session owns its connection for reading;
// responses are written from the same goroutine, so no write lock is
// needed.
type session struct {
	server   *Server
	conn     net.Conn
	log      *slog.Logger
	username string
	userDir  string
}

func newSession(s *Server, conn net.Conn) *session {
	return &session{
		server: s,
		conn:   conn,
		log:    logger.With("address", conn.RemoteAddr().String()),
	}
}

// serve runs the authentication prelude and then the command loop. It
// returns when the session reaches CLOSED; the caller closes the
// connection.
func (c *session) serve() {
	username, err := auth.Authenticate(c.conn, c.server.creds)
	if c.server.metrics != nil {
		c.server.metrics.RecordAuthAttempt(err == nil)
	}
	if err != nil {
		// One attempt only; the client must reconnect to retry.
		c.log.Debug("Authentication failed", "error", err)
		return
	}
	c.username = username
	c.log = c.log.With("username", username)

	dir, err := userDir(c.server.config.StorageRoot, username)
	if err != nil {
		c.log.Error("Failed to prepare user directory", "error", err)
		_ = wire.Send(c.conn, wire.Error("Storage unavailable"))
		return
	}
	c.userDir = dir
	c.log.Info("Session authenticated")

	for {
		select {
		case <-c.server.shutdown:
			c.log.Debug("Session closed by server shutdown")
			return
		default:
		}

		msg, err := wire.Receive(c.conn)
		if err != nil {
			if err == io.EOF {
				c.log.Debug("Session closed by client")
			} else {
				// Truncated or undecodable frame: the byte stream cannot
				// be resynchronized, so the session ends here.
				c.log.Warn("Protocol error, closing session", "error", err)
			}
			return
		}

		if err := c.dispatch(msg); err != nil {
			c.log.Warn("Transport error, closing session", "error", err)
			return
		}
	}
}

// dispatch routes one framed command. Application-level failures are
// answered with a status=error frame and keep the session alive; only
// transport failures are returned and terminate the loop.
func (c *session) dispatch(msg *wire.Message) error {
	var status string
	var err error

	switch msg.Command {
	case wire.CmdList:
		status, err = c.handleList()
	case wire.CmdUpload:
		status, err = c.handleUpload(msg)
	case wire.CmdDownload:
		status, err = c.handleDownload(msg)
	case wire.CmdView:
		status, err = c.handleView(msg)
	case wire.CmdDelete:
		status, err = c.handleDelete(msg)
	default:
		status, err = c.respondError("Unknown command: " + msg.Command)
	}

	if c.server.metrics != nil {
		c.server.metrics.RecordCommand(msg.Command, status)
	}
	return err
}

// respond frames a response. The returned status feeds command metrics.
func (c *session) respond(msg *wire.Message) (string, error) {
	return msg.Status, wire.Send(c.conn, msg)
}

// respondError frames a status=error response with a descriptive message.
func (c *session) respondError(detail string) (string, error) {
	return c.respond(wire.Error(detail))
}
