package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operational metrics of the app itself, served on --metrics-addr. The
// pushed counter lives in its own registry in the forwarder package.
var (
	EventsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seq_pushgateway_events_total",
			Help: "Total number of log events handled, by outcome",
		},
		[]string{"outcome"},
	)
	DecodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seq_pushgateway_decode_errors_total",
			Help: "Total number of input lines that could not be decoded as events",
		},
	)
	PushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seq_pushgateway_push_failures_total",
			Help: "Total number of failed pushes to the Pushgateway",
		},
	)
)

// Outcome label values for EventsHandled.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

func Init() {
	prometheus.MustRegister(EventsHandled, DecodeErrors, PushFailures)
}
