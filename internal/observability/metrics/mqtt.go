package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTT failure stages.
const (
	StageConnect        = "connect"
	StagePublish        = "publish"
	StageConnectionLost = "connection_lost"
)

// MQTTMetrics tracks the broker connection and change event fan-out.
type MQTTMetrics struct {
	connected      prometheus.Gauge
	lastConnect    prometheus.Gauge
	published      prometheus.Counter
	failures       *prometheus.CounterVec
	payloadBytes   prometheus.Histogram
	publishSeconds prometheus.Histogram

	collectors []prometheus.Collector
}

// NewMQTTMetrics creates and registers MQTT metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{}
	m.connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pokerwatch_mqtt_connected",
		Help: "1 while connected to the MQTT broker",
	})
	m.lastConnect = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pokerwatch_mqtt_last_connect_timestamp_seconds",
		Help: "Unix time of the last broker connection",
	})
	m.published = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pokerwatch_mqtt_events_published_total",
		Help: "Change events delivered to the broker",
	})
	m.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokerwatch_mqtt_failures_total",
			Help: "MQTT failures by stage",
		},
		[]string{"stage"},
	)
	m.payloadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pokerwatch_mqtt_payload_bytes",
		Help:    "Size of published change event payloads",
		Buckets: prometheus.ExponentialBuckets(128, BucketFactor2, 8),
	})
	m.publishSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pokerwatch_mqtt_publish_duration_seconds",
		Help:    "Time from publish to broker acknowledgement",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
	})

	m.collectors = []prometheus.Collector{
		m.connected, m.lastConnect, m.published,
		m.failures, m.payloadBytes, m.publishSeconds,
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// SetConnected records a connection state change.
func (m *MQTTMetrics) SetConnected(connected bool) {
	if !connected {
		m.connected.Set(0)
		return
	}
	m.connected.Set(1)
	m.lastConnect.SetToCurrentTime()
}

// RecordPublish records one acknowledged change event.
func (m *MQTTMetrics) RecordPublish(payloadBytes int, took time.Duration) {
	m.published.Inc()
	m.payloadBytes.Observe(float64(payloadBytes))
	m.publishSeconds.Observe(took.Seconds())
}

// RecordFailure counts a failure at stage.
func (m *MQTTMetrics) RecordFailure(stage string) {
	m.failures.WithLabelValues(stage).Inc()
}

// Describe implements prometheus.Collector.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
