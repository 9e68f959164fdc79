// Package metrics exposes Prometheus collectors for the pass system.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassTransitions counts successful pass mutations by action
	// (create, start, end, cancel, expire, cleanup).
	PassTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hallpass_pass_transitions_total",
		Help: "Successful pass state transitions by action.",
	}, []string{"action"})

	// SweepRuns counts completed sweeper ticks by job.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hallpass_sweep_runs_total",
		Help: "Completed sweeper ticks by job.",
	}, []string{"job"})

	// SweepErrors counts per-user failures inside a sweep that were logged
	// and skipped.
	SweepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hallpass_sweep_errors_total",
		Help: "Per-user sweep failures by job.",
	}, []string{"job"})
)
