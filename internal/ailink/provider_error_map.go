package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/visiprobe/visiprobe/internal/ailink/driver"
)

// Completion error codes.
const (
	CodeProviderTimeout     = "AILINK_PROVIDER_TIMEOUT"
	CodeProviderCanceled    = "AILINK_PROVIDER_CANCELED"
	CodeProviderAuth        = "AILINK_PROVIDER_AUTH"
	CodeProviderRateLimit   = "AILINK_PROVIDER_RATE_LIMIT"
	CodeProviderUnavailable = "AILINK_PROVIDER_UNAVAILABLE"
	CodeProviderBadRequest  = "AILINK_PROVIDER_BAD_REQUEST"
	CodeProviderError       = "AILINK_PROVIDER_ERROR"
	CodeEmptyResponse       = "AILINK_EMPTY_RESPONSE"
	CodeNotConfigured       = "AILINK_NOT_CONFIGURED"
)

// CompletionError classifies a failed completion call. Details may carry the
// provider body and must never be shown to end users.
type CompletionError struct {
	Code    string
	Message string
	Details string
	// RetryAfter is the provider's backoff hint for rate-limited calls.
	RetryAfter time.Duration
	Err        error
}

func (e *CompletionError) Error() string {
	if e == nil {
		return "completion error"
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CompletionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func mapProviderError(err error) *CompletionError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &CompletionError{Code: CodeProviderTimeout, Message: "provider request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &CompletionError{Code: CodeProviderCanceled, Message: "provider request canceled", Err: err}
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		status := perr.StatusCode
		details := strings.TrimSpace(perr.Message)
		switch {
		case status == 401 || status == 403:
			return &CompletionError{Code: CodeProviderAuth, Message: "provider authentication failed", Details: details, Err: err}
		case status == 429:
			return &CompletionError{Code: CodeProviderRateLimit, Message: "provider rate limited", Details: details, RetryAfter: perr.RetryAfter, Err: err}
		case status >= 500 && status <= 599:
			return &CompletionError{Code: CodeProviderUnavailable, Message: "provider unavailable", Details: details, Err: err}
		case status >= 400 && status <= 499:
			return &CompletionError{Code: CodeProviderBadRequest, Message: "provider rejected request", Details: details, Err: err}
		default:
			return &CompletionError{Code: CodeProviderError, Message: "provider request failed", Details: details, Err: err}
		}
	}

	return &CompletionError{Code: CodeProviderError, Message: "provider request failed", Details: err.Error(), Err: err}
}
