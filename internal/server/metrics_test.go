package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// stubExporter installs an exporter and routes proxied scrapes through rt.
func stubExporter(t *testing.T, rt roundTripFunc) {
	t.Helper()
	originalTransport, originalPort := metricsTransport, metricsFallbackPort
	metricsTransport = rt
	observability.PrometheusExporter = exporters.NewPrometheusExporter("test", ":0")
	t.Cleanup(func() {
		metricsTransport, metricsFallbackPort = originalTransport, originalPort
		observability.PrometheusExporter = nil
	})
}

func scrapeResponse(body string, contentType string) *http.Response {
	resp := &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body)), Header: make(http.Header)}
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return resp
}

func TestMetricsHandlerProxiesScrape(t *testing.T) {
	var forwarded *http.Request
	stubExporter(t, func(req *http.Request) (*http.Response, error) {
		forwarded = req
		return scrapeResponse("visiprobe_scan_started_total 3\n", "text/plain; version=0.0.4"), nil
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer admin")
	rec := httptest.NewRecorder()
	MetricsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "visiprobe_scan_started_total 3")
	require.NotNil(t, forwarded)
	assert.Equal(t, "/metrics", forwarded.URL.Path)
	assert.Empty(t, forwarded.Header.Get("Authorization"))
}

func TestMetricsHandlerUsesFallbackPort(t *testing.T) {
	var host string
	stubExporter(t, func(req *http.Request) (*http.Response, error) {
		host = req.URL.Host
		return scrapeResponse("visiprobe_scan_started_total 1\n", ""), nil
	})
	New(Options{Host: "127.0.0.1", MetricsPort: 9191})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if observability.GetMetricsPort() == 0 {
		assert.Equal(t, "127.0.0.1:9191", host)
	}
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestMetricsHandlerErrors(t *testing.T) {
	observability.PrometheusExporter = nil
	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", errorCode(t, rec))

	stubExporter(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	rec = httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
