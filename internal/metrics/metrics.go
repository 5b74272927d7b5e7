// Package metrics holds the Prometheus collectors shared by the pipeline,
// the executor, the retention pruner and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AsksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesiq_asks_total",
			Help: "Questions answered, by intent kind and outcome",
		},
		[]string{"intent", "outcome"},
	)

	AskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "salesiq_ask_duration_seconds",
			Help:    "End-to-end time to answer a question",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent"},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesiq_queries_total",
			Help: "Plans executed against the sales database, by result",
		},
		[]string{"result"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salesiq_query_duration_seconds",
			Help:    "Time spent executing a single plan",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salesiq_query_rows",
			Help:    "Rows returned per executed plan",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	AsksPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "salesiq_asks_pruned_total",
			Help: "Ask log entries deleted by retention",
		},
	)
)

// Outcome labels for AsksTotal.
const (
	OutcomeOK             = "ok"
	OutcomePlanError      = "plan_error"
	OutcomeExecutionError = "execution_error"
)
