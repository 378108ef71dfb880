package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nornsd_jobs_total",
			Help: "Total number of registered jobs",
		},
	)

	NamespacesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nornsd_namespaces_total",
			Help: "Total number of registered namespaces",
		},
	)

	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nornsd_tasks_total",
			Help: "Total number of I/O tasks by status",
		},
		[]string{"status"},
	)

	AcceptPaused = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nornsd_accept_paused",
			Help: "Whether task acceptance is paused (1 = paused, 0 = accepting)",
		},
	)

	SessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nornsd_sessions_active",
			Help: "Number of open sessions by endpoint",
		},
		[]string{"endpoint"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nornsd_requests_total",
			Help: "Total number of dispatched requests by kind and result code",
		},
		[]string{"kind", "code"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nornsd_task_duration_seconds",
			Help:    "Time taken for an I/O task to reach a terminal state, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RemoteRPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nornsd_remote_rpc_duration_seconds",
			Help:    "Time taken for a push_resource/pull_resource round trip, in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	RemoteRPCFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nornsd_remote_rpc_failures_total",
			Help: "Total number of failed remote RPCs by kind and error code",
		},
		[]string{"kind", "code"},
	)

	TasksSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nornsd_tasks_submitted_total",
			Help: "Total number of I/O tasks accepted for submission",
		},
	)

	TasksRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nornsd_tasks_rejected_total",
			Help: "Total number of iotask_submit requests rejected, by error code",
		},
		[]string{"code"},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(NamespacesTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(AcceptPaused)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(RemoteRPCDuration)
	prometheus.MustRegister(RemoteRPCFailuresTotal)
	prometheus.MustRegister(TasksSubmittedTotal)
	prometheus.MustRegister(TasksRejectedTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
