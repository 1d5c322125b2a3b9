package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is echoed on every response.
	RequestIDHeader = "X-Request-ID"
	// CorrelationIDHeader is accepted as an inbound alias for RequestIDHeader.
	CorrelationIDHeader = "X-Correlation-ID"

	maxRequestIDLength = 128
)

type requestIDKey struct{}

// RequestID resolves the request ID from chi, then the inbound headers, and
// generates a UUID when none is usable. The ID is stored on the context and
// echoed in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimw.GetReqID(r.Context())
		for _, header := range []string{RequestIDHeader, CorrelationIDHeader} {
			if id != "" {
				break
			}
			id = sanitizeRequestID(r.Header.Get(header))
		}
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// sanitizeRequestID drops caller-supplied IDs that are too long or carry
// characters outside [A-Za-z0-9._:-], since they end up in logs and headers.
func sanitizeRequestID(raw string) string {
	if raw == "" || len(raw) > maxRequestIDLength {
		return ""
	}
	for _, c := range raw {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return ""
		}
	}
	return raw
}

// GetRequestID returns the request ID stored by RequestID, falling back to
// chi's request ID.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return chimw.GetReqID(ctx)
}
