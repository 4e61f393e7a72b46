// Package metrics exposes the Prometheus counters and gauges the core
// and its background worker emit, the way application.go's pkg/metrics
// call site wires them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors registered against the default
// Prometheus registry at process start.
type Metrics struct {
	EventsAppended   *prometheus.CounterVec
	ValidationErrors *prometheus.CounterVec
	DepotFailures    *prometheus.CounterVec
	IntegrityOK      *prometheus.GaugeVec
	IntegrityBadSeq  *prometheus.GaugeVec
}

// New registers and returns the collector set. Call once per process.
func New() *Metrics {
	return &Metrics{
		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gonk",
			Name:      "events_appended_total",
			Help:      "Number of events successfully appended, by dataset and event kind.",
		}, []string{"dataset", "kind"}),
		ValidationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gonk",
			Name:      "validation_errors_total",
			Help:      "Number of events rejected by State.Validate, by dataset and reason code.",
		}, []string{"dataset", "reason"}),
		DepotFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gonk",
			Name:      "depot_write_failures_total",
			Help:      "Number of Depot writes that failed after a successful append, by dataset.",
		}, []string{"dataset"}),
		IntegrityOK: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gonk",
			Name:      "integrity_verified",
			Help:      "1 if the last integrity sweep of the dataset's log verified clean, else 0.",
		}, []string{"dataset"}),
		IntegrityBadSeq: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gonk",
			Name:      "integrity_first_bad_seq",
			Help:      "Append-position of the first event to fail integrity verification, or -1 if clean.",
		}, []string{"dataset"}),
	}
}
