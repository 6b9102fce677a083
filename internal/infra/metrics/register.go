// Package metrics holds the prometheus collectors for the send-timing
// service: dispatch outcomes, throttle denials and experiment events. Each
// collector file enqueues its collectors from init(); nothing touches the
// default registry until MustRegister runs, so unit tests can bump counters
// freely without tripping duplicate registration.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs every enqueued collector. Called once from the ops
// server start; later calls are no-ops.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(pending...)
	})
}
