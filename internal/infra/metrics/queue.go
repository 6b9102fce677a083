package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dispatchTotal, dispatchDuration, dueGauge) }

var dispatchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "outreach_dispatch_total",
		Help: "Dispatch attempts by outcome.",
	},
	[]string{"outcome"}, // 'sent', 'retry', 'failed', 'conflict'
)

var dispatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "outreach_dispatch_duration_seconds",
		Help:    "Wall time of a single delivery attempt.",
		Buckets: prometheus.DefBuckets,
	},
)

var dueGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "outreach_due_claimed",
		Help: "Due sends claimed by the last queue tick.",
	},
)

func IncDispatch(outcome string) {
	dispatchTotal.WithLabelValues(outcome).Inc()
}

func ObserveDispatchDuration(seconds float64) {
	dispatchDuration.Observe(seconds)
}

func SetDueClaimed(n int) {
	dueGauge.Set(float64(n))
}
