package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsRecording(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementMessages("reading")
	pm.IncrementMessages("reading")
	pm.IncrementDecodeErrors("malformed")
	pm.IncrementFaultAlerts()
	pm.IncrementPredictions()
	pm.IncrementPublishFailures()
	pm.IncrementCollaboratorErrors("predictor")
	pm.IncrementErrors("connection")
	pm.IncrementReadings("skipped")
	pm.SetBrokerConnected(true)
	pm.ObserveProcessingDuration(3 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.messages.WithLabelValues("reading")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.decodeErrors.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.faultAlerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.predictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.collaboratorErrors.WithLabelValues("predictor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.brokerConnected))

	pm.SetBrokerConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.brokerConnected))
}

func TestInstancesDoNotShareRegistry(t *testing.T) {
	a := NewPrometheusMetrics()
	b := NewPrometheusMetrics()

	a.IncrementPredictions()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.predictions))
}

func TestHandlerServesMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.IncrementFaultAlerts()

	rec := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pv_tracker_fault_alerts_total 1")
}

func TestNullMetricsIsInert(t *testing.T) {
	var c Collector = NewNullMetrics()
	c.IncrementMessages("reading")
	c.SetBrokerConnected(true)
	c.ObserveProcessingDuration(time.Second)
}
