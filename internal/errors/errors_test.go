package errors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		"INVALID_INPUT":          http.StatusBadRequest,
		"VALIDATION_FAILED":      http.StatusBadRequest,
		"RATE_LIMITED":           http.StatusTooManyRequests,
		"CONFIG_INVALID":         http.StatusInternalServerError,
		"TIMEOUT":                http.StatusGatewayTimeout,
		"EXTERNAL_SERVICE_ERROR": http.StatusBadGateway,
		"SERVICE_UNAVAILABLE":    http.StatusServiceUnavailable,
		"SOMETHING_ELSE":         http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatusFromCode(code), code)
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromEnvelope(nil))
}

func TestNewRateLimitedError(t *testing.T) {
	envelope := NewRateLimitedError("Rate limit exceeded. Try again in an hour.", 120)
	assert.Equal(t, "RATE_LIMITED", envelope.Code)
	assert.Equal(t, 120, envelope.Context["retry_after_seconds"])

	bare := NewRateLimitedError("slow down", 0)
	assert.Empty(t, bare.Context)
}

func TestRespondWithEnvelopeWritesStandardBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/ai-scan", nil)
	rec := httptest.NewRecorder()

	RespondWithEnvelope(rec, req, NewRateLimitedError("Rate limit exceeded. Try again in an hour.", 60))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
	assert.EqualValues(t, 60, body.Error.Details["retry_after_seconds"])
}

func TestWrapUsesActiveTraceID(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	envelope := WrapTimeout(ctx, nil, "Scan did not complete")
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", envelope.TraceID)

	fallback := WrapTimeout(context.Background(), nil, "Scan did not complete")
	assert.Equal(t, fallback.CorrelationID, fallback.TraceID)
}

func TestRespondWithErrorKeepsCauseOutOfBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/ai-scan", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, WrapInternal(req.Context(), assert.AnError, "Scan failed"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInternal, body.Error.Code)
	assert.Equal(t, "Scan failed", body.Error.Message)
	assert.Nil(t, body.Error.Details)

	rec = httptest.NewRecorder()
	RespondWithError(rec, nil, assert.AnError)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unexpected error", body.Error.Message)
	assert.True(t, strings.HasPrefix(body.Error.RequestID, "fallback-"))
}
