package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Commit log metrics
	CommitsLocalTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "demobit_commits_local_total",
			Help: "Number of commits waiting in the local (unpushed) log",
		},
	)

	CommitsRemoteTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "demobit_commits_remote_total",
			Help: "Number of commits accepted into the remote log",
		},
	)

	CommitContextOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "demobit_commit_context_open",
			Help: "Whether this repository currently holds its commit context open (1) or not (0)",
		},
	)

	// Sync RPC metrics
	PushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demobit_push_total",
			Help: "Total Push RPC attempts by outcome",
		},
		[]string{"outcome"},
	)

	PushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "demobit_push_duration_seconds",
			Help:    "Time taken to push the full local commit backlog",
			Buckets: prometheus.DefBuckets,
		},
	)

	PullTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demobit_pull_total",
			Help: "Total Pull RPC attempts by outcome",
		},
		[]string{"outcome"},
	)

	PullDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "demobit_pull_duration_seconds",
			Help:    "Time taken to pull and merge the remote log tail",
			Buckets: prometheus.DefBuckets,
		},
	)

	MergeRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demobit_merge_rejections_total",
			Help: "Total merge_pushed_commit rejections by error kind",
		},
		[]string{"kind"},
	)

	WatchSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "demobit_watch_subscribers",
			Help: "Number of Watch streams currently connected to this server",
		},
	)

	// Storage / action metrics
	ActionObjectsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demobit_action_objects_applied_total",
			Help: "Total ActionObjects dispatched through a storage hook, by kind and side",
		},
		[]string{"kind", "side"},
	)

	StorageObjectsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "demobit_storage_objects_total",
			Help: "Total objects currently held by a storage, by storage_id",
		},
		[]string{"storage_id"},
	)
)

func init() {
	prometheus.MustRegister(CommitsLocalTotal)
	prometheus.MustRegister(CommitsRemoteTotal)
	prometheus.MustRegister(CommitContextOpen)
	prometheus.MustRegister(PushTotal)
	prometheus.MustRegister(PushDuration)
	prometheus.MustRegister(PullTotal)
	prometheus.MustRegister(PullDuration)
	prometheus.MustRegister(MergeRejectionsTotal)
	prometheus.MustRegister(WatchSubscribers)
	prometheus.MustRegister(ActionObjectsAppliedTotal)
	prometheus.MustRegister(StorageObjectsTotal)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer, starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
