// Package driver defines the provider-neutral completion contract that the
// ailink service calls and provider packages implement.
package driver

import (
	"context"
	"fmt"
	"time"
)

// Driver sends completion requests to one provider.
type Driver interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// Message is one chat turn. Scans only ever send a single user message.
type Message struct {
	Role    string
	Content string
}

type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
	// PromptSlug tags traces with the prompt that produced the request.
	PromptSlug string
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Response struct {
	Content      string
	FinishReason string
	Usage        *Usage
}

// Text returns the answer text; a nil response yields "".
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return r.Content
}

// UserText wraps text as the single user message of a request.
func UserText(text string) []Message {
	return []Message{{Role: "user", Content: text}}
}

// ProviderError is a non-success answer from a provider. Message is the
// provider's own error text when it sent one, otherwise the trimmed body.
// It never carries request credentials.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	// RetryAfter is the provider's backoff hint on 429 and 503 answers.
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}
