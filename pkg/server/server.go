// Package server implements the DriftFS TCP server: the listener, the
// live-session registry, and the per-connection session state machine.
package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/pkg/auth"
	"github.com/driftfs/driftfs/pkg/metrics"
)

// Config holds the server configuration.
//
// Default values (applied by New if zero):
//   - MaxConnections: 0 (unlimited)
//   - ShutdownTimeout: 30s
//   - StorageRoot: "server_storage"
type Config struct {
	// BindAddress is the IP address to bind to.
	// Empty string or "0.0.0.0" binds to all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 lets the OS assign an
	// ephemeral port (GetListenerAddr reports the bound address).
	Port int

	// MaxConnections limits the number of concurrent client sessions.
	// 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout is the maximum duration to wait for active sessions
	// to finish during graceful shutdown before force-closing them.
	ShutdownTimeout time.Duration

	// StorageRoot is the directory under which per-user storage
	// directories are created.
	StorageRoot string
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.StorageRoot == "" {
		c.StorageRoot = "server_storage"
	}
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

// Server accepts connections and runs one session goroutine per client.
//
// Thread safety: all exported methods are safe for concurrent use. Shutdown
// uses sync.Once so it is idempotent even when the context is cancelled
// while sessions are closing themselves.
type Server struct {
	config Config
	creds  *auth.Store

	// metrics is optional; nil disables collection.
	metrics metrics.Recorder

	// listener is closed during shutdown to stop accepting.
	listener   net.Listener
	listenerMu sync.RWMutex

	// sessions registers every accepted connection (before authentication
	// completes) keyed by remote address, for forced closure at shutdown.
	// Entries are removed exactly once, by the session goroutine's defer;
	// sync.Map tolerates the force-closer racing with self-removal.
	sessions sync.Map

	// activeSessions tracks session goroutines for graceful shutdown.
	activeSessions sync.WaitGroup

	// sessionCount is the current number of live sessions.
	sessionCount atomic.Int32

	// shutdownOnce guards the shutdown channel close and listener cleanup.
	shutdownOnce sync.Once

	// shutdown is closed when shutdown is initiated.
	shutdown chan struct{}

	// connSemaphore limits concurrent sessions when MaxConnections > 0.
	connSemaphore chan struct{}

	// ListenerReady is closed once the listener is accepting. Tests use it
	// to synchronize with server startup.
	ListenerReady chan struct{}
}

// New creates a Server for the given configuration and credential table.
// Zero config values are replaced with defaults; an invalid configuration
// panics (programmer error).
func New(cfg Config, creds *auth.Store) *Server {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("invalid server config: %v", err))
	}

	var connSemaphore chan struct{}
	if cfg.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, cfg.MaxConnections)
	}

	return &Server{
		config:        cfg,
		creds:         creds,
		shutdown:      make(chan struct{}),
		connSemaphore: connSemaphore,
		ListenerReady: make(chan struct{}),
	}
}

// SetMetrics installs a metrics recorder. Must be called before Serve.
func (s *Server) SetMetrics(m metrics.Recorder) {
	s.metrics = m
}

// Serve binds the listener and accepts connections until the context is
// cancelled. It returns nil on graceful shutdown, or an error if the
// listener fails or sessions had to be force-closed after the timeout.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(s.config.StorageRoot, 0755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}

	listenAddr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.ListenerReady)

	logger.Info("Server listening", "address", listener.Addr(), "storage_root", s.config.StorageRoot)

	// Shutdown is driven by context cancellation; no OS signal handling
	// happens at this layer.
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", "error", ctx.Err())
		s.initiateShutdown()
	}()

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				// Listener was closed by shutdown.
				return s.gracefulShutdown()
			default:
				logger.Debug("Accept error", "error", err)
				continue
			}
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", "error", err)
			}
		}

		s.activeSessions.Add(1)
		active := s.sessionCount.Add(1)

		// Register before authentication so shutdown can force-close
		// sessions stuck in the auth prelude too.
		addr := conn.RemoteAddr().String()
		s.sessions.Store(addr, conn)

		if s.metrics != nil {
			s.metrics.RecordSessionAccepted()
			s.metrics.SetActiveSessions(active)
		}
		logger.Debug("Connection accepted", "address", addr, "active", active)

		sess := newSession(s, conn)
		go func() {
			defer func() {
				s.sessions.Delete(addr)
				if err := conn.Close(); err != nil {
					// Already closed by shutdown's force-close; harmless.
					logger.Debug("Connection close", "address", addr, "error", err)
				}
				s.activeSessions.Done()
				remaining := s.sessionCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
				if s.metrics != nil {
					s.metrics.RecordSessionClosed()
					s.metrics.SetActiveSessions(remaining)
				}
				logger.Debug("Connection closed", "address", addr, "active", remaining)
			}()

			sess.serve()
		}()
	}
}

// initiateShutdown stops accepting, force-closes every registered session
// channel (unblocking in-flight receives), and closes the listener. Safe to
// call multiple times and concurrently with sessions closing themselves.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		// Snapshot-free iteration is fine here: Range tolerates concurrent
		// deletes, and closing an already-closed conn is a no-op error.
		s.sessions.Range(func(key, value any) bool {
			conn := value.(net.Conn)
			if err := conn.Close(); err == nil {
				if s.metrics != nil {
					s.metrics.RecordSessionForceClosed()
				}
				logger.Debug("Force-closed session", "address", key)
			}
			return true
		})

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Listener close error", "error", err)
			}
		}
		s.listenerMu.Unlock()
	})
}

// gracefulShutdown waits for session goroutines to observe their closed
// channels and exit, up to ShutdownTimeout.
func (s *Server) gracefulShutdown() error {
	active := s.sessionCount.Load()
	logger.Info("Waiting for sessions to close", "active", active, "timeout", s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeSessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Server stopped: all sessions closed")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.sessionCount.Load()
		logger.Warn("Shutdown timeout exceeded", "active", remaining)
		return fmt.Errorf("shutdown timeout: %d sessions still active", remaining)
	}
}

// GetListenerAddr returns the bound address. It blocks until the listener
// is ready, which makes it safe to call right after starting Serve in a
// goroutine.
func (s *Server) GetListenerAddr() string {
	<-s.ListenerReady

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ActiveSessions returns the current number of live sessions.
func (s *Server) ActiveSessions() int32 {
	return s.sessionCount.Load()
}
