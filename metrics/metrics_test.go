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

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveDetection(true)
	m.ObserveDetection(true)
	m.ObserveDetection(false)
	m.ObserveFailure(FailureInference)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.detections.WithLabelValues("true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.detections.WithLabelValues("false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failures.WithLabelValues(FailureInference)))
}

func TestReadyGauge(t *testing.T) {
	m := New()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ready))
	m.SetReady(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ready))
	m.SetReady(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ready))
}

func TestHistograms(t *testing.T) {
	m := New()
	m.ObserveStage("detector", 3*time.Millisecond)
	m.ObserveStage("nms", time.Millisecond)
	m.ObserveModelLoad(time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(m.stages, "nudenet_stage_duration_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(m.modelLoad, "nudenet_model_load_seconds"))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveDetection(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nudenet_detections_total{verdict="false"} 1`)
	assert.Contains(t, rec.Body.String(), "nudenet_ready 0")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDetection(true)
		m.ObserveFailure(FailureOther)
		m.ObserveStage("decode", time.Millisecond)
		m.ObserveModelLoad(time.Second)
		m.SetReady(true)
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}
