package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgc_jobs_total",
			Help: "Jobs that finished the pipeline, by outcome",
		},
		[]string{"result"},
	)

	filesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgc_files_processed_total",
			Help: "Files attempted by the pipeline, by outcome",
		},
		[]string{"result"},
	)

	bytesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imgc_bytes_saved_total",
		Help: "Bytes saved by compression across all jobs",
	})

	jobDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imgc_job_duration_seconds",
		Help:    "Wall time of one pipeline run",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imgc_queue_depth",
		Help: "Jobs waiting for a worker",
	})

	busyWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imgc_busy_workers",
		Help: "Workers currently running a job",
	})
)
