package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listinglab_monitor_cycles_total",
		Help: "Monitor cycles started.",
	})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listinglab_monitor_actions_total",
		Help: "Status transitions triggered by the monitor, by action.",
	}, []string{"action"})

	experimentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listinglab_monitor_experiment_errors_total",
		Help: "Per-experiment failures inside a monitor cycle, by stage.",
	}, []string{"stage"})
)
