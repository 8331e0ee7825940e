// Package metrics defines the observability interface consumed by the
// server. Implementations are optional: passing nil disables collection
// with zero overhead.
package metrics

// Recorder collects session lifecycle, command, and transfer metrics.
//
// The server calls these from the accept loop and from session goroutines,
// so implementations must be safe for concurrent use.
type Recorder interface {
	// RecordSessionAccepted increments the total accepted sessions counter.
	RecordSessionAccepted()

	// RecordSessionClosed increments the total closed sessions counter.
	RecordSessionClosed()

	// RecordSessionForceClosed counts sessions force-closed during shutdown.
	RecordSessionForceClosed()

	// SetActiveSessions updates the live session gauge.
	SetActiveSessions(count int32)

	// RecordAuthAttempt records one authentication attempt and its outcome.
	RecordAuthAttempt(success bool)

	// RecordCommand records one dispatched command and its response status.
	RecordCommand(command, status string)

	// RecordBytesTransferred counts raw stream bytes moved in the given
	// direction ("upload" or "download").
	RecordBytesTransferred(direction string, bytes int64)
}
