package engine

import (
	"errors"
	"time"
)

// Request-level failures. They are returned before any scan event is emitted.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limited")
	ErrConfiguration = errors.New("configuration error")
)

// Client-facing messages for request-level failures.
const (
	MessageURLRequired      = "URL is required"
	MessageInvalidURL       = "Invalid URL format"
	MessageRateLimited      = "Rate limit exceeded. Try again in an hour."
	MessageKeyNotConfigured = "API key not configured"
)

// RequestError is a request-level failure with a message safe to show callers.
// It matches its Kind with errors.Is.
type RequestError struct {
	Kind       error
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "request error"
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RequestError) Is(target error) bool {
	return e != nil && target == e.Kind
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PublicMessage returns the caller-facing message of a request error, or "".
func PublicMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr != nil {
		return reqErr.Message
	}
	return ""
}
