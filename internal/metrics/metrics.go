// Package metrics provides Prometheus instrumentation for the fraud detector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fraud"

// Drop causes for DispatchDropped.
const (
	DropTransport = "transport"
	DropUpdate    = "update"
	DropTimeout   = "timeout"
	DropRejected  = "rejected"
)

var (
	// FlagsDetected counts flags raised by the rule engine, by reason.
	FlagsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "flags_detected_total",
			Help:      "Total flags raised by the rule engine by reason.",
		},
		[]string{"reason"},
	)

	// InvalidRows counts rows skipped during evaluation.
	InvalidRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "invalid_rows_total",
			Help:      "Total transactions skipped by the rule engine as invalid.",
		},
	)

	// SweepDuration observes detection sweep latency.
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Detection sweep duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// DispatchEnqueued counts flags handed to the dispatch queue.
	DispatchEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "enqueued_total",
			Help:      "Total flags accepted into the dispatch queue.",
		},
	)

	// DispatchDropped counts flags lost in the dispatch stage, by cause.
	DispatchDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Total flags dropped during dispatch by cause.",
		},
		[]string{"cause"}, // "transport", "update", "timeout", "rejected"
	)

	// DispatchQueueDepth tracks buffered tasks waiting for a worker.
	DispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Number of flags buffered in the dispatch queue.",
		},
	)

	// AcceptOutcomes counts acceptance results by outcome.
	AcceptOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accept",
			Name:      "outcomes_total",
			Help:      "Total flag acceptance attempts by outcome.",
		},
		[]string{"outcome"}, // "accepted", "duplicate", "error"
	)

	// ActiveWebSocketClients tracks connected live feed clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_websocket_clients",
			Help:      "Number of connected flag feed clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		FlagsDetected,
		InvalidRows,
		SweepDuration,
		DispatchEnqueued,
		DispatchDropped,
		DispatchQueueDepth,
		AcceptOutcomes,
		ActiveWebSocketClients,
	)
}
