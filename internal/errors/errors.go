// Package errors builds gofulmen error envelopes for the scan API and writes
// them as JSON error bodies.
package errors

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/metrics"
	"github.com/visiprobe/visiprobe/internal/observability"
	"github.com/visiprobe/visiprobe/internal/server/middleware"
)

// Error codes carried in envelopes and response bodies.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeTimeout            = "TIMEOUT"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeInvalidInput:       http.StatusBadRequest,
	CodeValidationFailed:   http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeExternalService:    http.StatusBadGateway,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

// NewRateLimitedError reports an exhausted scan quota. retryAfterSeconds is
// carried in the envelope context when positive.
func NewRateLimitedError(message string, retryAfterSeconds int) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeRateLimited, message)
	if retryAfterSeconds <= 0 {
		return envelope
	}
	return withContext(envelope, "retry_after_seconds", retryAfterSeconds)
}

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInvalidInput, err, message)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeConfigInvalid, err, message)
}

// WrapExternalService marks a failure of a dependency outside the process,
// such as the rate limit store or the completion gateway.
func WrapExternalService(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeExternalService, err, message)
}

func WrapTimeout(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeTimeout, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := wrap(ctx, CodeInternal, err, message)
	envelope, _ = envelope.WithSeverity(errors.SeverityHigh)
	return envelope
}

// wrap stamps the request correlation and trace IDs onto a new envelope and
// records the cause's text in its context.
func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	correlationID := correlationIDFrom(ctx)
	traceID := correlationID
	if ctx != nil {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.HasTraceID() {
			traceID = spanCtx.TraceID().String()
		}
	}

	envelope := errors.NewErrorEnvelope(code, message).
		WithCorrelationID(correlationID).
		WithTraceID(traceID)
	if err != nil {
		envelope = withContext(envelope, "wrapped_error", err.Error())
	}
	return envelope
}

func correlationIDFrom(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return uuid.New().String()
}

func withContext(envelope *errors.ErrorEnvelope, key string, value interface{}) *errors.ErrorEnvelope {
	updated, err := envelope.WithContext(map[string]interface{}{key: value})
	if err != nil {
		return envelope
	}
	return updated
}

// HTTPStatusFromEnvelope resolves the HTTP status for an envelope; nil maps to 500.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status for an error code. Unknown codes
// and CONFIG_INVALID map to 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HTTPErrorDetail is the error object returned to API callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError writes err as a JSON error body. Errors that are not
// already envelopes become INTERNAL_ERROR without exposing their text.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, asEnvelope(err))
}

func asEnvelope(err error) *errors.ErrorEnvelope {
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}
	envelope := errors.NewErrorEnvelope(CodeInternal, "unexpected error")
	if err != nil {
		envelope = withContext(envelope, "wrapped_error", err.Error())
	}
	envelope, _ = envelope.WithSeverity(errors.SeverityHigh)
	return envelope
}

// RespondWithEnvelope logs the envelope, counts it and writes the JSON body.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}
	if envelope == nil {
		envelope = asEnvelope(nil)
	}

	endpoint := ""
	if r != nil {
		endpoint = r.URL.Path
		if envelope.CorrelationID == "" {
			envelope = envelope.WithCorrelationID(correlationIDFrom(r.Context()))
		}
	}
	if envelope.CorrelationID == "" {
		envelope = envelope.WithCorrelationID("fallback-" + errors.GenerateCorrelationID())
	}

	status := HTTPStatusFromEnvelope(envelope)
	logEnvelope(envelope, status)
	metrics.RecordHTTPError(endpoint, envelope.Code, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: HTTPErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		Details:   publicDetails(envelope),
		RequestID: envelope.CorrelationID,
	}})
}

// publicDetails merges envelope details with context, leaving out the
// wrapped cause which only goes to the log.
func publicDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	details := make(map[string]interface{}, len(envelope.Details)+len(envelope.Context))
	for key, value := range envelope.Context {
		if key != "wrapped_error" {
			details[key] = value
		}
	}
	for key, value := range envelope.Details {
		details[key] = value
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func logEnvelope(envelope *errors.ErrorEnvelope, status int) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("request_id", envelope.CorrelationID),
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	switch {
	case envelope.Severity == errors.SeverityCritical, envelope.Severity == errors.SeverityHigh, status >= 500:
		logger.Error(envelope.Message, fields...)
	case envelope.Severity == errors.SeverityMedium, status == http.StatusTooManyRequests:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
