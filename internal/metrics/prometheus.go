package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pv_tracker"

// PrometheusMetrics records pipeline metrics on its own registry so several
// instances (and tests) never collide on the global default registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	messages           *prometheus.CounterVec
	decodeErrors       *prometheus.CounterVec
	faultAlerts        prometheus.Counter
	predictions        prometheus.Counter
	publishFailures    prometheus.Counter
	collaboratorErrors *prometheus.CounterVec
	errors             *prometheus.CounterVec
	readings           *prometheus.CounterVec
	brokerConnected    prometheus.Gauge
	processingDuration prometheus.Histogram
}

// NewPrometheusMetrics creates and registers all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound broker messages by kind",
		}, []string{"kind"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Messages dropped because they could not be decoded",
		}, []string{"kind"}),
		faultAlerts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fault_alerts_total",
			Help:      "Fault alert commands dispatched",
		}),
		predictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Power prediction commands dispatched",
		}),
		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Publishes that failed or were skipped while disconnected",
		}),
		collaboratorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_errors_total",
			Help:      "Fault detector, forecast input and predictor failures",
		}, []string{"collaborator"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Handled errors by kind",
		}, []string{"kind"}),
		readings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Device sampling cycles by outcome",
		}, []string{"outcome"}),
		brokerConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "1 when the broker connection is up",
		}),
		processingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_processing_seconds",
			Help:      "Time to route one inbound message",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

// Handler exposes the registry for scraping
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

func (pm *PrometheusMetrics) IncrementMessages(kind string) {
	pm.messages.WithLabelValues(kind).Inc()
}

func (pm *PrometheusMetrics) IncrementDecodeErrors(kind string) {
	pm.decodeErrors.WithLabelValues(kind).Inc()
}

func (pm *PrometheusMetrics) IncrementFaultAlerts() {
	pm.faultAlerts.Inc()
}

func (pm *PrometheusMetrics) IncrementPredictions() {
	pm.predictions.Inc()
}

func (pm *PrometheusMetrics) IncrementPublishFailures() {
	pm.publishFailures.Inc()
}

func (pm *PrometheusMetrics) IncrementCollaboratorErrors(collaborator string) {
	pm.collaboratorErrors.WithLabelValues(collaborator).Inc()
}

func (pm *PrometheusMetrics) IncrementErrors(kind string) {
	pm.errors.WithLabelValues(kind).Inc()
}

func (pm *PrometheusMetrics) IncrementReadings(outcome string) {
	pm.readings.WithLabelValues(outcome).Inc()
}

func (pm *PrometheusMetrics) SetBrokerConnected(connected bool) {
	if connected {
		pm.brokerConnected.Set(1)
	} else {
		pm.brokerConnected.Set(0)
	}
}

func (pm *PrometheusMetrics) ObserveProcessingDuration(duration time.Duration) {
	pm.processingDuration.Observe(duration.Seconds())
}
