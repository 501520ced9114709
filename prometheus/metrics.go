package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crm"

var (
	// Authentication metrics
	AuthAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Total number of authentication attempts",
		},
		[]string{"realm", "result"},
	)

	// Database operation metrics
	DbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Duration of database operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	// ResourceOperationsCounter counts CRUD calls per resource
	ResourceOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_operations_total",
			Help:      "Total number of operations per resource",
		},
		[]string{"resource", "operation"},
	)

	// ExpiryScansCounter counts expiry scan runs by trigger
	ExpiryScansCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_scans_total",
			Help:      "Total number of expiry scans",
		},
		[]string{"trigger"},
	)

	// ExpiryNotificationsCounter counts notifications produced or skipped by scans
	ExpiryNotificationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_notifications_total",
			Help:      "Expiry notifications by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// EmailsCounter counts outbound email attempts
	EmailsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Outbound emails by template and status",
		},
		[]string{"template", "status"},
	)

	// DashboardQueryFailures counts dashboard slots that fell back to defaults
	DashboardQueryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_query_failures_total",
			Help:      "Dashboard queries that failed and used their fallback value",
		},
		[]string{"query"},
	)
)

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordOperation increments the counter for resource operations
func RecordOperation(resource, operation string) {
	ResourceOperationsCounter.WithLabelValues(resource, operation).Inc()
}

// RecordAuthAttempt records a login or token check in the staff or portal realm
func RecordAuthAttempt(realm string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	AuthAttemptsCounter.WithLabelValues(realm, result).Inc()
}

// RecordExpiryScan records one scan invocation
func RecordExpiryScan(trigger string) {
	ExpiryScansCounter.WithLabelValues(trigger).Inc()
}

// RecordExpiryNotification records the outcome for one due service
func RecordExpiryNotification(notificationType, outcome string) {
	ExpiryNotificationsCounter.WithLabelValues(notificationType, outcome).Inc()
}

// RecordEmail records one outbound email attempt
func RecordEmail(template string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	EmailsCounter.WithLabelValues(template, status).Inc()
}

// RecordDashboardFailure records a dashboard query that degraded to its default
func RecordDashboardFailure(query string) {
	DashboardQueryFailures.WithLabelValues(query).Inc()
}
