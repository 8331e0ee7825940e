// Package prometheus provides the Prometheus-backed metrics.Recorder and
// the /metrics HTTP endpoint.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// recorder implements metrics.Recorder on a Prometheus registry.
type recorder struct {
	sessionsActive      prometheus.Gauge
	sessionsTotal       prometheus.Counter
	sessionsClosed      prometheus.Counter
	sessionsForceClosed prometheus.Counter
	authAttempts        *prometheus.CounterVec
	commands            *prometheus.CounterVec
	transferBytes       *prometheus.CounterVec
}

// NewRecorder registers the DriftFS collectors on reg and returns the
// recorder. Pass a dedicated registry; registering twice on the same one
// panics, as usual with promauto.
func NewRecorder(reg *prometheus.Registry) *recorder {
	return &recorder{
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "driftfs_sessions_active",
			Help: "Current number of live client sessions",
		}),
		sessionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "driftfs_sessions_accepted_total",
			Help: "Total number of accepted client connections",
		}),
		sessionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "driftfs_sessions_closed_total",
			Help: "Total number of closed client sessions",
		}),
		sessionsForceClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "driftfs_sessions_force_closed_total",
			Help: "Sessions force-closed during server shutdown",
		}),
		authAttempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "driftfs_auth_attempts_total",
			Help: "Authentication attempts by result",
		}, []string{"result"}), // "success", "failed"
		commands: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "driftfs_commands_total",
			Help: "Dispatched commands by name and response status",
		}, []string{"command", "status"}),
		transferBytes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "driftfs_transfer_bytes_total",
			Help: "Raw stream bytes transferred by direction",
		}, []string{"direction"}), // "upload", "download"
	}
}

func (r *recorder) RecordSessionAccepted() {
	if r == nil {
		return
	}
	r.sessionsTotal.Inc()
}

func (r *recorder) RecordSessionClosed() {
	if r == nil {
		return
	}
	r.sessionsClosed.Inc()
}

func (r *recorder) RecordSessionForceClosed() {
	if r == nil {
		return
	}
	r.sessionsForceClosed.Inc()
}

func (r *recorder) SetActiveSessions(count int32) {
	if r == nil {
		return
	}
	r.sessionsActive.Set(float64(count))
}

func (r *recorder) RecordAuthAttempt(success bool) {
	if r == nil {
		return
	}
	result := "failed"
	if success {
		result = "success"
	}
	r.authAttempts.WithLabelValues(result).Inc()
}

func (r *recorder) RecordCommand(command, status string) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(command, status).Inc()
}

func (r *recorder) RecordBytesTransferred(direction string, bytes int64) {
	if r == nil {
		return
	}
	r.transferBytes.WithLabelValues(direction).Add(float64(bytes))
}
