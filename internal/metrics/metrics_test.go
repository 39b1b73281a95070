package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Registered(t *testing.T) {
	// Vectors only show up once a label set exists.
	FlagsDetected.WithLabelValues("amount")
	DispatchDropped.WithLabelValues(DropTransport)
	AcceptOutcomes.WithLabelValues("accepted")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, name := range []string{
		"fraud_rules_flags_detected_total",
		"fraud_rules_invalid_rows_total",
		"fraud_sweep_duration_seconds",
		"fraud_dispatch_enqueued_total",
		"fraud_dispatch_dropped_total",
		"fraud_dispatch_queue_depth",
		"fraud_accept_outcomes_total",
		"fraud_active_websocket_clients",
	} {
		assert.True(t, names[name], "metric %s not registered", name)
	}
}

func TestDispatchDropped_CountsByCause(t *testing.T) {
	DispatchDropped.Reset()

	DispatchDropped.WithLabelValues(DropTransport).Inc()
	DispatchDropped.WithLabelValues(DropTransport).Inc()
	DispatchDropped.WithLabelValues(DropTimeout).Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(DispatchDropped.WithLabelValues(DropTransport)))
	assert.Equal(t, 1.0, testutil.ToFloat64(DispatchDropped.WithLabelValues(DropTimeout)))
	assert.Equal(t, 0.0, testutil.ToFloat64(DispatchDropped.WithLabelValues(DropRejected)))
}
