package server

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftfs/driftfs/pkg/auth"
	"github.com/driftfs/driftfs/pkg/client"
	"github.com/driftfs/driftfs/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is one running server on an ephemeral port with the seeded
// credential table (user1/pass1, user2/pass2).
type testEnv struct {
	addr        string
	storageRoot string
	srv         *Server
	cancel      context.CancelFunc

	// stopped is closed once Serve returns, so both tests and cleanup can
	// observe completion; serveErr is valid after stopped is closed.
	stopped  chan struct{}
	serveErr error
}

func startTestServer(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	storageRoot := t.TempDir()
	store, err := auth.Load(filepath.Join(t.TempDir(), "id_passwd.txt"))
	require.NoError(t, err)

	cfg.BindAddress = "127.0.0.1"
	cfg.StorageRoot = storageRoot
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}
	srv := New(cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	env := &testEnv{
		storageRoot: storageRoot,
		srv:         srv,
		cancel:      cancel,
		stopped:     make(chan struct{}),
	}
	go func() {
		env.serveErr = srv.Serve(ctx)
		close(env.stopped)
	}()
	env.addr = srv.GetListenerAddr()

	t.Cleanup(func() {
		cancel()
		select {
		case <-env.stopped:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down in time")
		}
	})
	return env
}

// login dials and authenticates a client, failing the test on error.
func (env *testEnv) login(t *testing.T, username, password string) *client.Client {
	t.Helper()
	c, err := client.Dial(env.addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Login(username, password))
	return c
}

// writeTempFile creates a file with the given content and returns its path.
func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

// patternBytes returns n deterministic ASCII bytes, safe for lossless
// preview comparison.
func patternBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a' + byte(i%26)
	}
	return b
}

func TestScenarioFullLifecycle(t *testing.T) {
	env := startTestServer(t, Config{})
	c := env.login(t, "user1", "pass1")

	content := patternBytes(10000)
	require.NoError(t, c.Upload(writeTempFile(t, "a.bin", content), nil))

	files, err := c.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.bin"}, files)

	downloadDir := t.TempDir()
	path, err := c.Download("a.bin", downloadDir, nil)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	preview, err := c.View("a.bin")
	require.NoError(t, err)
	assert.Equal(t, string(content[:1024]), preview)

	require.NoError(t, c.Delete("a.bin"))

	files, err = c.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUploadDownloadIdempotence(t *testing.T) {
	env := startTestServer(t, Config{})
	c := env.login(t, "user1", "pass1")

	// Exercise the chunk boundary: exactly one chunk, one byte over.
	for _, size := range []int{0, 1, wire.ChunkSize, wire.ChunkSize + 1} {
		content := patternBytes(size)
		name := "f" + string(rune('a'+size%26)) + ".bin"
		require.NoError(t, c.Upload(writeTempFile(t, name, content), nil))

		path, err := c.Download(name, t.TempDir(), nil)
		require.NoError(t, err)
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, content, got, "size %d", size)
	}
}

func TestUploadProgress(t *testing.T) {
	env := startTestServer(t, Config{})
	c := env.login(t, "user1", "pass1")

	size := wire.ChunkSize*3 + 17
	var last, total int64
	err := c.Upload(writeTempFile(t, "p.bin", patternBytes(size)), func(transferred, declared int64) {
		last = transferred
		total = declared
	})
	require.NoError(t, err)
	assert.Equal(t, int64(size), last)
	assert.Equal(t, int64(size), total)
}

func TestWrongPasswordClosesConnection(t *testing.T) {
	env := startTestServer(t, Config{})

	c, err := client.Dial(env.addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Login("user1", "wrong")
	assert.ErrorIs(t, err, client.ErrAuthFailed)

	// No retry on the same connection: the server has closed it.
	_, err = c.List()
	assert.Error(t, err)
}

func TestNoCommandServedBeforeAuth(t *testing.T) {
	env := startTestServer(t, Config{})

	conn, err := net.Dial("tcp", env.addr)
	require.NoError(t, err)
	defer conn.Close()

	// A command frame sent as the first message is treated as a failed
	// authentication attempt, never dispatched.
	require.NoError(t, wire.Send(conn, &wire.Message{Command: wire.CmdList}))
	resp, err := wire.Receive(conn)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusFailed, resp.Status)
	assert.Empty(t, resp.Files)
}

func TestUnknownCommandKeepsSession(t *testing.T) {
	env := startTestServer(t, Config{})

	conn, err := net.Dial("tcp", env.addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.Send(conn, &wire.Message{Username: "user1", Password: "pass1"}))
	resp, err := wire.Receive(conn)
	require.NoError(t, err)
	require.Equal(t, wire.StatusSuccess, resp.Status)

	require.NoError(t, wire.Send(conn, &wire.Message{Command: "rename"}))
	resp, err = wire.Receive(conn)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusError, resp.Status)
	assert.Contains(t, resp.Detail, "Unknown command")

	// The loop must survive the bad command.
	require.NoError(t, wire.Send(conn, &wire.Message{Command: wire.CmdList}))
	resp, err = wire.Receive(conn)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusSuccess, resp.Status)
}

func TestDeleteNonexistentFile(t *testing.T) {
	env := startTestServer(t, Config{})
	c := env.login(t, "user1", "pass1")

	err := c.Delete("ghost.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File not found")

	// Session still serves subsequent commands.
	_, err = c.List()
	assert.NoError(t, err)
}

func TestDownloadNonexistentFile(t *testing.T) {
	env := startTestServer(t, Config{})
	c := env.login(t, "user1", "pass1")

	_, err := c.Download("ghost.bin", t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File not found")
}

func TestViewLossyDecode(t *testing.T) {
	env := startTestServer(t, Config{})
	c := env.login(t, "user1", "pass1")

	// Invalid UTF-8 bytes must be dropped, never fail the command.
	content := append([]byte("hello "), 0xFF, 0xFE)
	content = append(content, []byte("world")...)
	require.NoError(t, c.Upload(writeTempFile(t, "mixed.bin", content), nil))

	preview, err := c.View("mixed.bin")
	require.NoError(t, err)
	assert.Equal(t, "hello world", preview)
}

func TestViewShortFile(t *testing.T) {
	env := startTestServer(t, Config{})
	c := env.login(t, "user1", "pass1")

	require.NoError(t, c.Upload(writeTempFile(t, "short.txt", []byte("tiny")), nil))
	preview, err := c.View("short.txt")
	require.NoError(t, err)
	assert.Equal(t, "tiny", preview)
}

func TestUserIsolation(t *testing.T) {
	env := startTestServer(t, Config{})
	c1 := env.login(t, "user1", "pass1")
	c2 := env.login(t, "user2", "pass2")

	require.NoError(t, c1.Upload(writeTempFile(t, "mine.txt", []byte("user1 data")), nil))

	files, err := c2.List()
	require.NoError(t, err)
	assert.Empty(t, files, "user2 must not see user1's files")

	_, err = c2.Download("mine.txt", t.TempDir(), nil)
	assert.Error(t, err)

	files, err = c1.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"mine.txt"}, files)
}

func TestConcurrentUploadsSameUser(t *testing.T) {
	env := startTestServer(t, Config{})

	// Two live sessions for the same user, interleaving framed exchanges.
	c1 := env.login(t, "user1", "pass1")
	c2 := env.login(t, "user1", "pass1")

	content1 := patternBytes(50000)
	content2 := bytes.Repeat([]byte{0x42}, 50000)
	path1 := writeTempFile(t, "one.bin", content1)
	path2 := writeTempFile(t, "two.bin", content2)

	errs := make(chan error, 2)
	go func() { errs <- c1.Upload(path1, nil) }()
	go func() { errs <- c2.Upload(path2, nil) }()
	for range 2 {
		require.NoError(t, <-errs)
	}

	files, err := c1.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one.bin", "two.bin"}, files)

	got1, err := os.ReadFile(filepath.Join(env.storageRoot, "user1", "one.bin"))
	require.NoError(t, err)
	assert.Equal(t, content1, got1)
	got2, err := os.ReadFile(filepath.Join(env.storageRoot, "user1", "two.bin"))
	require.NoError(t, err)
	assert.Equal(t, content2, got2)
}

func TestPathTraversalRejected(t *testing.T) {
	env := startTestServer(t, Config{})

	conn, err := net.Dial("tcp", env.addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.Send(conn, &wire.Message{Username: "user1", Password: "pass1"}))
	resp, err := wire.Receive(conn)
	require.NoError(t, err)
	require.Equal(t, wire.StatusSuccess, resp.Status)

	for _, name := range []string{"../escape.txt", "a/b.txt", `..\evil`, "..", "."} {
		require.NoError(t, wire.Send(conn, &wire.Message{Command: wire.CmdUpload, Filename: name, Size: 4}))
		// The raw bytes are streamed unconditionally; the server must
		// drain them and stay in protocol sync.
		_, err = conn.Write([]byte("evil"))
		require.NoError(t, err)

		resp, err = wire.Receive(conn)
		require.NoError(t, err)
		assert.Equal(t, wire.StatusError, resp.Status, "name %q", name)
	}

	// Nothing escaped the user directory.
	_, err = os.Stat(filepath.Join(env.storageRoot, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(filepath.Dir(env.storageRoot), "escape.txt"))
	assert.True(t, os.IsNotExist(err))

	// And the session is still alive.
	require.NoError(t, wire.Send(conn, &wire.Message{Command: wire.CmdList}))
	resp, err = wire.Receive(conn)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusSuccess, resp.Status)
}

func TestTraversalRejectedOnEveryCommand(t *testing.T) {
	env := startTestServer(t, Config{})
	c := env.login(t, "user1", "pass1")

	_, err := c.Download("../secrets", t.TempDir(), nil)
	assert.Error(t, err)
	_, err = c.View("../secrets")
	assert.Error(t, err)
	err = c.Delete("../secrets")
	assert.Error(t, err)
}

func TestUploadTruncationLeavesPartialFile(t *testing.T) {
	env := startTestServer(t, Config{})

	conn, err := net.Dial("tcp", env.addr)
	require.NoError(t, err)

	require.NoError(t, wire.Send(conn, &wire.Message{Username: "user1", Password: "pass1"}))
	resp, err := wire.Receive(conn)
	require.NoError(t, err)
	require.Equal(t, wire.StatusSuccess, resp.Status)

	// Declare 100 bytes, deliver 10, disconnect.
	require.NoError(t, wire.Send(conn, &wire.Message{Command: wire.CmdUpload, Filename: "partial.bin", Size: 100}))
	_, err = conn.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// No rollback: the partial file stays on disk once the session exits.
	partialPath := filepath.Join(env.storageRoot, "user1", "partial.bin")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(partialPath)
		return err == nil && len(data) == 10
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return env.srv.ActiveSessions() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownForceClosesSessions(t *testing.T) {
	env := startTestServer(t, Config{})
	c := env.login(t, "user1", "pass1")

	require.Eventually(t, func() bool {
		return env.srv.ActiveSessions() == 1
	}, 2*time.Second, 10*time.Millisecond)

	env.cancel()

	select {
	case <-env.stopped:
		// The idle session was blocked in a receive; the forced close
		// unblocks it, so shutdown completes within the timeout.
		assert.NoError(t, env.serveErr)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	_, err := c.List()
	assert.Error(t, err)
}

func TestMaxConnectionsLimit(t *testing.T) {
	env := startTestServer(t, Config{MaxConnections: 1})
	c1 := env.login(t, "user1", "pass1")

	// The second connection is not accepted until the first session ends.
	c2, err := client.Dial(env.addr)
	require.NoError(t, err)
	defer c2.Close()

	loginDone := make(chan error, 1)
	go func() { loginDone <- c2.Login("user2", "pass2") }()

	select {
	case err := <-loginDone:
		t.Fatalf("second session served while limit held: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, c1.Close())

	select {
	case err := <-loginDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("second session never admitted after slot freed")
	}
}
