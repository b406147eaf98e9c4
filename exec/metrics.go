package exec

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "latticerun_engine_exec_operations_total",
		Help: "Total pipeline operations dispatched, by kind and outcome.",
	}, []string{"kind", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "latticerun_engine_exec_operation_duration_seconds",
		Help: "Wall-clock duration of one dispatched operation, by kind.",
	}, []string{"kind"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "latticerun_engine_exec_runs_total",
		Help: "Total pipeline runs, by terminal status.",
	}, []string{"status"})
)
