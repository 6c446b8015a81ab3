package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeAborted = "aborted"
	OutcomeFailed  = "failed"
)

var (
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlagent_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)
	pipelineRunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlagent_pipeline_run_duration_seconds",
			Help:    "End to end pipeline run latency.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
	pipelineStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlagent_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage latency by stage name.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 300},
		},
		[]string{"stage"},
	)
	generationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlagent_generation_failures_total",
			Help: "Total number of failed SQL generation attempts.",
		},
	)
	queriesRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlagent_queries_rejected_total",
			Help: "Total number of generated queries rejected by the read-only guard.",
		},
	)
	queryErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlagent_query_errors_total",
			Help: "Total number of warehouse query failures.",
		},
	)
	queryRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlagent_query_rows",
			Help:    "Rows returned per executed query.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 10000},
		},
	)
	archiveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlagent_archive_failures_total",
			Help: "Total number of run records that could not be archived.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		pipelineRunsTotal,
		pipelineRunDurationSeconds,
		pipelineStageDurationSeconds,
		generationFailuresTotal,
		queriesRejectedTotal,
		queryErrorsTotal,
		queryRows,
		archiveFailuresTotal,
	)
}

func ObservePipelineRun(outcome string, elapsed time.Duration) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
	pipelineRunDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveStage(stage string, elapsed time.Duration) {
	pipelineStageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func IncGenerationFailure() { generationFailuresTotal.Inc() }

func IncQueryRejected() { queriesRejectedTotal.Inc() }

func IncQueryError() { queryErrorsTotal.Inc() }

func ObserveQueryRows(rows int) {
	if rows < 0 {
		rows = 0
	}
	queryRows.Observe(float64(rows))
}

func IncArchiveFailure() { archiveFailuresTotal.Inc() }
