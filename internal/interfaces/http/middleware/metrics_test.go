package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	engine := gin.New()
	engine.Use(HTTPMetrics(mp.Meter("test")))
	engine.POST("/save-report", func(c *gin.Context) {
		c.String(http.StatusCreated, "saved")
	})

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/save-report", strings.NewReader(`{"patient":{}}`))
		engine.ServeHTTP(httptest.NewRecorder(), req)
	}
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	byName := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m.Data
		}
	}

	total, ok := byName["http_server_request_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range total.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("http.route"))
		status, _ := dp.Attributes.Value(attribute.Key("http.status_code"))
		counts[route.AsString()+" "+status.Emit()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"/save-report 201": 2, "unknown 404": 1}, counts)

	sizes, ok := byName["http_server_request_size_bytes"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, sizes.DataPoints, 1)
	assert.Equal(t, uint64(2), sizes.DataPoints[0].Count)

	active, ok := byName["http_server_active_requests"].(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range active.DataPoints {
		assert.Zero(t, dp.Value)
	}
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	engine := gin.New()
	engine.Use(HTTPMetrics(nil))
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
