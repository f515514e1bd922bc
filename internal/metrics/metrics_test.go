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

func TestCollectorObservations(t *testing.T) {
	c := NewCollector(100 * time.Millisecond)
	assert.InDelta(t, 0.1, testutil.ToFloat64(c.FrameInterval), 1e-9)

	c.ObserveState(375.5, 60, true)
	assert.Equal(t, 375.5, testutil.ToFloat64(c.SimTime))
	assert.Equal(t, 60.0, testutil.ToFloat64(c.SpeedMultiplier))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Playing))

	c.ObserveState(375.5, 60, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Playing))

	c.SetStatusCounts(map[string]int{"running": 3, "waiting": 1})
	assert.Equal(t, 3.0, testutil.ToFloat64(c.TrainsByStatus.WithLabelValues("running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TrainsByStatus.WithLabelValues("waiting")))

	c.ObserveTick(time.Millisecond)
	c.ObserveTick(time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Ticks))

	c.ObserveRequest("GET", "/api/trains", 200)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/trains", "200")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector(time.Second)
	c.ObserveState(10, 1, true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "simulator_time_minutes 10")
	assert.Contains(t, rec.Body.String(), "simulator_frame_interval_seconds 1")
}
