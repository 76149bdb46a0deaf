package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	_metrics "github.com/aurora-is-near/stream-events/metrics"
)

var latencyBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}

type Metrics struct {
	Server _metrics.Server
	Labels map[string]string

	InputStreamConnected       prometheus.Gauge       `json:"-" mapstructure:"-"`
	InputStreamSequenceNumber  prometheus.Gauge       `json:"-" mapstructure:"-"`
	OutputStreamConnected      prometheus.Gauge       `json:"-" mapstructure:"-"`
	OutputStreamSequenceNumber prometheus.Gauge       `json:"-" mapstructure:"-"`
	LastSlot                   prometheus.Gauge       `json:"-" mapstructure:"-"`
	DecodedEvents              *prometheus.CounterVec `json:"-" mapstructure:"-"`
	UnknownEvents              *prometheus.CounterVec `json:"-" mapstructure:"-"`
	DecodeErrors               *prometheus.CounterVec `json:"-" mapstructure:"-"`
	SkipsCount                 prometheus.Counter     `json:"-" mapstructure:"-"`
	PublishRetries             prometheus.Counter     `json:"-" mapstructure:"-"`
	DecodeLatency              prometheus.Observer    `json:"-" mapstructure:"-"`
}

func (m *Metrics) Start() error {
	labelNames := []string{}
	labelValues := []string{}
	for name, value := range m.Labels {
		labelNames = append(labelNames, name)
		labelValues = append(labelValues, value)
	}
	withLabels := func(extra ...string) []string {
		return append(append([]string{}, labelNames...), extra...)
	}

	m.InputStreamConnected = m.Server.AddGauge(
		"input_stream_connected",
		"Is input stream connected (0 or 1)",
		labelNames,
	).WithLabelValues(labelValues...)

	m.InputStreamSequenceNumber = m.Server.AddGauge(
		"input_stream_sequence_number",
		"Last processed sequence number on the input stream",
		labelNames,
	).WithLabelValues(labelValues...)

	m.OutputStreamConnected = m.Server.AddGauge(
		"output_stream_connected",
		"Is output stream connected (0 or 1)",
		labelNames,
	).WithLabelValues(labelValues...)

	m.OutputStreamSequenceNumber = m.Server.AddGauge(
		"output_stream_sequence_number",
		"Last published sequence number on the output stream",
		labelNames,
	).WithLabelValues(labelValues...)

	m.LastSlot = m.Server.AddGauge(
		"last_slot",
		"Slot of the last published event",
		labelNames,
	).WithLabelValues(labelValues...)

	m.DecodedEvents = m.Server.AddCounter(
		"decoded_events_count",
		"Published events by program and event name",
		withLabels("program", "event"),
	).MustCurryWith(prometheus.Labels(m.Labels))

	m.UnknownEvents = m.Server.AddCounter(
		"unknown_events_count",
		"Published events with an unrecognized discriminator",
		withLabels("program"),
	).MustCurryWith(prometheus.Labels(m.Labels))

	m.DecodeErrors = m.Server.AddCounter(
		"decode_errors_count",
		"Messages that failed to decode by error kind",
		withLabels("program", "kind"),
	).MustCurryWith(prometheus.Labels(m.Labels))

	m.SkipsCount = m.Server.AddCounter(
		"skips_count",
		"Input messages skipped without publishing",
		labelNames,
	).WithLabelValues(labelValues...)

	m.PublishRetries = m.Server.AddCounter(
		"publish_retries_count",
		"Failed publish attempts that were retried",
		labelNames,
	).WithLabelValues(labelValues...)

	m.DecodeLatency = m.Server.AddHistogram(
		"decode_latency_seconds",
		"Time spent decoding one message",
		latencyBuckets,
		labelNames,
	).WithLabelValues(labelValues...)

	return m.Server.Start()
}

func (m *Metrics) Closed() <-chan error {
	return m.Server.Closed()
}

func (m *Metrics) Stop() {
	m.Server.Stop()
}
