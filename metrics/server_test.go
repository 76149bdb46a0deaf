package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerCollects(t *testing.T) {
	server := &Server{Namespace: "events", Subsystem: "test"}
	gauge := server.AddGauge("connected", "Is connected", []string{"stream"})
	counter := server.AddCounter("decoded", "Decoded events", []string{"event"})
	histogram := server.AddHistogram("latency", "Latency", []float64{0.001, 0.01}, nil)

	require.NoError(t, server.Start())
	defer server.Stop()

	gauge.WithLabelValues("input").Set(1)
	counter.WithLabelValues("TradeEvent").Add(3)
	histogram.WithLabelValues().Observe(0.005)

	assert.Equal(t, 1.0, testutil.ToFloat64(gauge.WithLabelValues("input")))
	assert.Equal(t, 3.0, testutil.ToFloat64(counter.WithLabelValues("TradeEvent")))

	families, err := server.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["events_test_connected"])
	assert.True(t, names["events_test_decoded"])
	assert.True(t, names["events_test_latency"])
}

func TestServerRejectsDuplicates(t *testing.T) {
	server := &Server{}
	server.AddGauge("same", "a", nil)
	server.AddGauge("same", "b", nil)
	assert.Error(t, server.Start())
}

func TestServerWithoutListenAddress(t *testing.T) {
	server := &Server{}
	counter := server.AddCounter("skips", "Skipped messages", nil)

	families, err := server.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)

	require.NoError(t, server.Start())
	counter.WithLabelValues().Inc()
	families, err = server.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "skips", families[0].GetName())

	server.Stop()
	select {
	case err := <-server.Closed():
		t.Fatalf("unexpected close: %v", err)
	default:
	}
}
