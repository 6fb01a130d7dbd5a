package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// transitionsTotal cuenta transiciones del ciclo de vida por status destino.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listinglab_experiment_transitions_total",
		Help: "Experiment lifecycle transitions by target status",
	}, []string{"status"})

	// collectionsTotal cuenta recolecciones de métricas por resultado (ok, simulated o failed).
	collectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listinglab_metrics_collections_total",
		Help: "Metric collections by result",
	}, []string{"result"})

	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listinglab_analyses_total",
		Help: "Statistical analyses by status",
	}, []string{"status"})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listinglab_decisions_total",
		Help: "Winner decisions by reason",
	}, []string{"reason"})

	// remoteStopFailures cuenta stops remotos fallidos con transición local aplicada.
	remoteStopFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listinglab_remote_stop_failures_total",
		Help: "Remote experiment stops that failed",
	})

	publishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listinglab_publish_failures_total",
		Help: "Winner content updates rejected by the listing publisher",
	})
)
