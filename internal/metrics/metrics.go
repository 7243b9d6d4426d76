package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksCreated counts tasks admitted through the service.
	TasksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskscheduler_tasks_created_total",
			Help: "The total number of tasks created.",
		},
		[]string{"task_type"},
	)

	// TasksDeleted counts explicit retirements via the API.
	TasksDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskscheduler_tasks_deleted_total",
			Help: "The total number of tasks soft-deleted through the API.",
		},
	)

	// ExecutionsRecorded counts committed execution rows by outcome.
	ExecutionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskscheduler_executions_recorded_total",
			Help: "The total number of execution records committed.",
		},
		[]string{"status"},
	)

	// DispatcherWakeups counts wake-up signals observed by the dispatcher.
	DispatcherWakeups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskscheduler_dispatcher_wakeups_total",
			Help: "The total number of wake-up signals the dispatcher acted on.",
		},
	)

	// DispatcherPollErrors counts failed next-pending queries.
	DispatcherPollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskscheduler_dispatcher_poll_errors_total",
			Help: "The total number of failed next-pending polls.",
		},
	)

	// DispatchDuration is a histogram of process_task wall time.
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskscheduler_dispatch_duration_seconds",
			Help:    "A histogram of task processing duration.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)
)
