// Package metrics exposes Prometheus counters for the audit pipeline and the
// /metrics endpoint that serves them.
package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure stages.
const (
	StageDetect   = "detect"
	StageRecord   = "record"
	StageSnapshot = "snapshot"
	StagePanic    = "panic"
)

// Suppression reasons.
const (
	ReasonNoChanges = "no_changes"
	ReasonDuplicate = "duplicate"
	ReasonVanished  = "vanished"
	ReasonUntracked = "untracked"
)

var (
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audittrail_notifications_total",
		Help: "Lifecycle notifications received, by entity kind and event",
	}, []string{"kind", "event"})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audittrail_records_written_total",
		Help: "Audit records written to the log store, by entity kind and severity",
	}, []string{"kind", "severity"})

	suppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audittrail_records_suppressed_total",
		Help: "Detections that produced no record, by reason",
	}, []string{"reason"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audittrail_pipeline_failures_total",
		Help: "Swallowed pipeline failures, by stage",
	}, []string{"stage"})

	detectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audittrail_detect_duration_seconds",
		Help:    "Time from after-mutation notification to stored record",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"kind"})

	snapshotsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audittrail_snapshots_expired_total",
		Help: "Pending snapshots evicted by the expiry sweep",
	})
)

// Notification counts a received notification.
func Notification(kind, event string) {
	notificationsTotal.WithLabelValues(kind, event).Inc()
}

// Recorded counts a written record.
func Recorded(kind, severity string) {
	recordsTotal.WithLabelValues(kind, severity).Inc()
}

// Suppressed counts a detection that was not logged.
func Suppressed(reason string) {
	suppressedTotal.WithLabelValues(reason).Inc()
}

// Failure counts a swallowed failure.
func Failure(stage string) {
	failuresTotal.WithLabelValues(stage).Inc()
}

// ObserveDetect records how long one detection took.
func ObserveDetect(kind string, d time.Duration) {
	detectDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// SnapshotsExpired counts swept snapshots.
func SnapshotsExpired(n int) {
	if n > 0 {
		snapshotsExpired.Add(float64(n))
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// RegisterRoutes mounts GET /metrics.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/metrics", Handler())
}
