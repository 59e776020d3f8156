// Package metrics exposes prometheus collectors for the generation worker
// pool and the interview lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quinn_generation_jobs_enqueued_total",
		Help: "Question generation jobs accepted into the worker pool queue.",
	})
	JobsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quinn_generation_jobs_processed_total",
		Help: "Question generation jobs completed successfully.",
	})
	JobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quinn_generation_jobs_dropped_total",
		Help: "Question generation jobs dropped because the queue was full.",
	})
	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quinn_generation_jobs_failed_total",
		Help: "Question generation jobs that exhausted all attempts.",
	})
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quinn_generation_active_workers",
		Help: "Workers currently running in the generation pool.",
	})
	QueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quinn_generation_queue_size",
		Help: "Jobs waiting in the generation pool queue.",
	})
	InterviewsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quinn_interviews_completed_total",
		Help: "Interviews completed, labelled by completion reason.",
	}, []string{"reason"})
	SweeperRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quinn_sweeper_runs_total",
		Help: "Executions of the time-limit sweeper.",
	})
)
