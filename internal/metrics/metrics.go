// package metrics counts watcher activity with Prometheus collectors
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plwatch"

// Outcomes of a single playlist check
const (
	OutcomeUnchanged = "unchanged"
	OutcomeReordered = "reordered"
	OutcomeChanged   = "changed"
	OutcomeFailed    = "failed"
)

// Recorder holds the collectors for one process. A nil *Recorder discards everything.
type Recorder struct {
	registry      *prometheus.Registry
	cycles        *prometheus.CounterVec
	checks        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	lastCycle     prometheus.Gauge
	tracked       prometheus.Gauge
}

// NewRecorder creates a Recorder backed by its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Reconciliation cycles run, by phase and result.",
		}, []string{"phase", "result"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playlist_checks_total",
			Help:      "Playlist checks, by playlist and outcome.",
		}, []string{"playlist", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications dispatched, by status.",
		}, []string{"status"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished.",
		}),
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_playlists",
			Help:      "Playlists currently in the registry.",
		}),
	}
	r.registry.MustRegister(r.cycles, r.checks, r.notifications, r.lastCycle, r.tracked)
	return r
}

// Cycle records a finished cycle.
func (r *Recorder) Cycle(phase string, err error, finished time.Time) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.cycles.WithLabelValues(phase, result).Inc()
	r.lastCycle.Set(float64(finished.Unix()))
}

// Check records the outcome of one playlist check.
func (r *Recorder) Check(playlist, outcome string) {
	if r == nil {
		return
	}
	r.checks.WithLabelValues(playlist, outcome).Inc()
}

// Notification records one dispatch attempt.
func (r *Recorder) Notification(err error) {
	if r == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	r.notifications.WithLabelValues(status).Inc()
}

// Tracked sets the number of playlists in the registry.
func (r *Recorder) Tracked(n int) {
	if r == nil {
		return
	}
	r.tracked.Set(float64(n))
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
