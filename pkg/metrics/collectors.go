package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImportBatches counts takeoff import attempts by outcome
	// (committed, aborted, failed).
	ImportBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipetrak_import_batches_total",
		Help: "Takeoff import batches by outcome.",
	}, []string{"outcome"})

	ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipetrak_import_rows_total",
		Help: "Takeoff import rows by disposition.",
	}, []string{"disposition"})

	MilestoneEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipetrak_milestone_events_total",
		Help: "Milestone ledger events by action.",
	}, []string{"action"})

	ExceptionsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipetrak_exceptions_raised_total",
		Help: "Needs-review exceptions raised by type.",
	}, []string{"type"})
)
