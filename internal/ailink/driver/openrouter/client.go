// Package openrouter sends chat completions through the OpenRouter gateway,
// which fronts every platform model behind one OpenAI-shaped endpoint.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/visiprobe/visiprobe/internal/ailink/driver"
)

const (
	// DefaultBaseURL is the OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	providerName = "openrouter"

	// maxResponseBytes bounds how much of a completion body is read.
	maxResponseBytes = 4 << 20
)

// Client posts to {BaseURL}/chat/completions. Model slugs such as
// "perplexity/sonar" pick the upstream vendor.
type Client struct {
	BaseURL    string
	APIKey     string
	Referer    string
	Title      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient trims its inputs and falls back to DefaultBaseURL.
func NewClient(baseURL, apiKey string) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{BaseURL: base, APIKey: strings.TrimSpace(apiKey)}
}

func (c *Client) Name() string {
	return providerName
}

// Complete sends one chat completion. Non-2xx answers come back as
// *driver.ProviderError.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, errors.New("openrouter client not configured")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("api key is required")
	}

	payload, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	entry := driver.TraceEntry{
		Driver:      providerName,
		Endpoint:    endpoint,
		Method:      http.MethodPost,
		Model:       payload.Model,
		PromptSlug:  req.PromptSlug,
		RequestBody: body,
	}
	start := time.Now()
	resp, respBody, err := c.post(ctx, endpoint, body)
	entry.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		entry.Error = err.Error()
		driver.Trace(entry)
		return nil, err
	}
	entry.StatusCode = resp.StatusCode
	entry.Response = respBody
	driver.Trace(entry)

	if resp.StatusCode/100 != 2 {
		return nil, providerError(resp.StatusCode, resp.Header, respBody)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return toDriverResponse(&parsed)
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (*http.Response, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if referer := strings.TrimSpace(c.Referer); referer != "" {
		httpReq.Header.Set("HTTP-Referer", referer)
	}
	if title := strings.TrimSpace(c.Title); title != "" {
		httpReq.Header.Set("X-Title", title)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // body fully read below

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, respBody, nil
}
