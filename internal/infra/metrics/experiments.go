package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(experimentEvents, experimentCompleted) }

var experimentEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outreach_experiment_events_total",
		Help: "Experiment events recorded, labeled by kind and variant.",
	},
	[]string{"kind", "variant"}, // kind: 'sent', 'reply'
)

var experimentCompleted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outreach_experiments_completed_total",
		Help: "Experiments frozen with a winner, labeled by winning variant.",
	},
	[]string{"variant"},
)

func IncExperimentEvent(kind, variant string) {
	experimentEvents.WithLabelValues(kind, variant).Inc()
}

func IncExperimentCompleted(variant string) {
	experimentCompleted.WithLabelValues(variant).Inc()
}
