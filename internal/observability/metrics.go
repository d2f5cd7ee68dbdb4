// Package observability provides Prometheus metrics for pokerwatch.
package observability

import (
	stdlog "log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Pipeline *metrics.PipelineMetrics
	MQTT     *metrics.MQTTMetrics
}

// NewMetrics creates a new instance of Metrics on a private registry,
// including the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, wrap(err, "go_collector")
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, wrap(err, "process_collector")
	}

	pipeline, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, wrap(err, "pipeline")
	}
	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, wrap(err, "mqtt")
	}

	log.Debug("metrics registry initialized", logger.Bool("process_collector", true))
	return &Metrics{
		registry: registry,
		Pipeline: pipeline,
		MQTT:     mqttMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

func wrap(err error, collector string) error {
	return errors.New(err).
		Component("observability").
		Category(errors.CategoryConfiguration).
		Context("collector", collector).
		Build()
}
