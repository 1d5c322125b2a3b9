package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRequestID() http.Handler {
	return RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetRequestID(r.Context())))
	}))
}

func TestRequestIDHonoursInboundHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/ai-scan", nil)
	req.Header.Set(RequestIDHeader, "scan-123")
	rec := serve(echoRequestID(), req)
	assert.Equal(t, "scan-123", rec.Body.String())
	assert.Equal(t, "scan-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodPost, "/api/ai-scan", nil)
	req.Header.Set(CorrelationIDHeader, "corr:42")
	assert.Equal(t, "corr:42", serve(echoRequestID(), req).Body.String())
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	for _, raw := range []string{"bad id", "x\r\ny", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, raw)
		rec := serve(echoRequestID(), req)
		assert.NotEqual(t, raw, rec.Body.String())
		assert.Len(t, rec.Body.String(), 36, "expected a generated uuid")
	}
}

func TestRecoveryHidesPanicDetails(t *testing.T) {
	collector := setupTelemetry(t)

	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret gateway key leaked")
	})))
	req := httptest.NewRequest(http.MethodPost, "/api/ai-scan", nil)
	req.Header.Set(RequestIDHeader, "panic-1")
	rec := serve(handler, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")

	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "panic-1", body.Error.RequestID)
	assert.Equal(t, 1, collector.CountMetricsByName("panics_total"))
}
