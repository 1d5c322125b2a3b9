package openrouter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/visiprobe/visiprobe/internal/ailink/driver"
)

type chatCompletionResponse struct {
	Choices []choice   `json:"choices"`
	Usage   *usage     `json:"usage,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type choice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content string `json:"content"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// errorBody is returned with a 200 status when the upstream vendor fails
// after OpenRouter accepted the request.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// errorEnvelope is the body OpenRouter sends with non-2xx statuses.
type errorEnvelope struct {
	Error *errorBody `json:"error"`
}

// providerError builds the driver error for a non-2xx answer, preferring the
// structured message and honouring a Retry-After hint given in seconds.
func providerError(status int, header http.Header, body []byte) *driver.ProviderError {
	perr := &driver.ProviderError{Provider: providerName, StatusCode: status, Message: strings.TrimSpace(string(body))}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		perr.Message = envelope.Error.Message
	}
	if perr.Message == "" {
		perr.Message = http.StatusText(status)
	}

	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		if seconds, err := strconv.Atoi(strings.TrimSpace(header.Get("Retry-After"))); err == nil && seconds > 0 {
			perr.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return perr
}

func toDriverResponse(resp *chatCompletionResponse) (*driver.Response, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty response")
	}
	if resp.Error != nil {
		return nil, &driver.ProviderError{Provider: providerName, StatusCode: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response choices")
	}

	choice := resp.Choices[0]
	response := &driver.Response{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
	}

	if resp.Usage != nil {
		response.Usage = &driver.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return response, nil
}
