package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(quotaDenied, cooldownDenied) }

var quotaDenied = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "outreach_quota_denied_total",
		Help: "Schedule requests denied because a quota window was full.",
	},
)

var cooldownDenied = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "outreach_cooldown_denied_total",
		Help: "Bulk session starts denied by the weekly cooldown guard.",
	},
)

func IncQuotaDenied()    { quotaDenied.Inc() }
func IncCooldownDenied() { cooldownDenied.Inc() }
