package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for collection cycles.
type PipelineMetrics struct {
	registry *prometheus.Registry

	operationsTotal     *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	errorsTotal         *prometheus.CounterVec
	retriesTotal        prometheus.Counter
	ticksDropped        prometheus.Counter
	recordsCollected    prometheus.Counter
	recordsDropped      *prometheus.CounterVec
	eventsDetected      *prometheus.CounterVec
	correlationsFound   prometheus.Counter
	totalPlayers        prometheus.Gauge
	lastSuccess         prometheus.Gauge
	consecutiveFailures prometheus.Gauge
	state               *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers new pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokerwatch_operations_total",
			Help: "Total number of pipeline operations by outcome",
		},
		[]string{"operation", "status"},
	)
	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pokerwatch_operation_duration_seconds",
			Help:    "Time taken by pipeline operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~20s
		},
		[]string{"operation"},
	)
	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokerwatch_errors_total",
			Help: "Total number of pipeline errors by category",
		},
		[]string{"operation", "error_type"},
	)
	m.retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pokerwatch_cycle_retries_total",
		Help: "Total number of whole-cycle retries",
	})
	m.ticksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pokerwatch_ticks_dropped_total",
		Help: "Scheduled ticks dropped because a cycle was already running",
	})
	m.recordsCollected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pokerwatch_records_collected_total",
		Help: "Validated records stored",
	})
	m.recordsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokerwatch_records_dropped_total",
			Help: "Records rejected by validation",
		},
		[]string{"reason"},
	)
	m.eventsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokerwatch_change_events_total",
			Help: "Change events detected by magnitude",
		},
		[]string{"magnitude"},
	)
	m.correlationsFound = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pokerwatch_correlations_total",
		Help: "Correlation records produced",
	})
	m.totalPlayers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pokerwatch_total_players",
		Help: "Players online summed over all sites in the last stored collection",
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pokerwatch_last_success_timestamp_seconds",
		Help: "Unix time of the last successful cycle",
	})
	m.consecutiveFailures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pokerwatch_consecutive_failures",
		Help: "Cycles abandoned or failed since the last success",
	})
	m.state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pokerwatch_orchestrator_state",
			Help: "Current orchestrator state (1 for the active state)",
		},
		[]string{"state"},
	)

	m.collectors = []prometheus.Collector{
		m.operationsTotal, m.operationDuration, m.errorsTotal,
		m.retriesTotal, m.ticksDropped,
		m.recordsCollected, m.recordsDropped,
		m.eventsDetected, m.correlationsFound,
		m.totalPlayers, m.lastSuccess, m.consecutiveFailures,
		m.state,
	}
}

// RecordOperation implements Recorder.
func (m *PipelineMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *PipelineMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder. The operation counter is incremented
// with an error status as well.
func (m *PipelineMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
	m.operationsTotal.WithLabelValues(operation, StatusError).Inc()
}

// RecordRetry counts one whole-cycle retry.
func (m *PipelineMetrics) RecordRetry() {
	m.retriesTotal.Inc()
}

// RecordTickDropped counts a tick that arrived while a cycle was running.
func (m *PipelineMetrics) RecordTickDropped() {
	m.ticksDropped.Inc()
}

// RecordCollection records the outcome of validation for one cycle.
func (m *PipelineMetrics) RecordCollection(kept, totalPlayers int, dropped map[string]int) {
	m.recordsCollected.Add(float64(kept))
	m.totalPlayers.Set(float64(totalPlayers))
	for reason, n := range dropped {
		m.recordsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordEvent counts one change event.
func (m *PipelineMetrics) RecordEvent(magnitude string) {
	m.eventsDetected.WithLabelValues(magnitude).Inc()
}

// RecordCorrelations counts correlation records.
func (m *PipelineMetrics) RecordCorrelations(n int) {
	m.correlationsFound.Add(float64(n))
}

// SetLastSuccess records the unix time of the last successful cycle.
func (m *PipelineMetrics) SetLastSuccess(unixSeconds float64) {
	m.lastSuccess.Set(unixSeconds)
}

// SetConsecutiveFailures records the failure streak.
func (m *PipelineMetrics) SetConsecutiveFailures(n int) {
	m.consecutiveFailures.Set(float64(n))
}

// SetState marks state as the active orchestrator state. Every state in
// all is reset first.
func (m *PipelineMetrics) SetState(state string, all []string) {
	for _, s := range all {
		m.state.WithLabelValues(s).Set(0)
	}
	m.state.WithLabelValues(state).Set(1)
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
