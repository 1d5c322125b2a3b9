package ailink

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/ailink/driver"
)

// CompletionProvider sends one prompt to one model and returns the reply text.
type CompletionProvider interface {
	Complete(ctx context.Context, model, prompt string, timeout time.Duration) (string, error)
}

// Service is the CompletionProvider backed by the configured gateway.
type Service struct {
	Config   Config
	Registry *Registry
	Logger   *zap.Logger
}

// NewService builds a Service with its own driver registry.
func NewService(cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Config: cfg, Registry: NewRegistry(cfg), Logger: logger}
}

type promptSlugKey struct{}

// WithPromptSlug tags completions made with ctx for request tracing.
func WithPromptSlug(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, promptSlugKey{}, slug)
}

func promptSlug(ctx context.Context) string {
	slug, _ := ctx.Value(promptSlugKey{}).(string)
	return slug
}

// Complete sends prompt as a single user message. A timeout of zero uses the
// configured default. Failures are returned as *CompletionError.
func (s *Service) Complete(ctx context.Context, model, prompt string, timeout time.Duration) (string, error) {
	if s == nil || s.Registry == nil {
		return "", &CompletionError{Code: CodeNotConfigured, Message: "completion service not configured"}
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resolved, err := s.Registry.Resolve()
	if err != nil {
		return "", &CompletionError{Code: CodeNotConfigured, Message: "no usable credential", Err: err}
	}

	if timeout <= 0 {
		timeout = s.Config.timeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := s.Config.maxTokens()
	temperature := s.Config.temperature()
	req := &driver.Request{
		Model:       strings.TrimSpace(model),
		Messages:    driver.UserText(prompt),
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		PromptSlug:  promptSlug(ctx),
	}

	start := time.Now()
	resp, err := resolved.Driver.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		mapped := mapProviderError(err)
		logger.Warn("completion failed",
			zap.String("model", req.Model),
			zap.String("credential", resolved.CredentialLabel),
			zap.String("code", mapped.Code),
			zap.Duration("elapsed", elapsed),
			zap.Duration("retry_after", mapped.RetryAfter),
			zap.Error(err),
		)
		return "", mapped
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &CompletionError{Code: CodeEmptyResponse, Message: "provider returned empty content"}
	}

	logger.Debug("completion succeeded",
		zap.String("model", req.Model),
		zap.String("prompt_slug", req.PromptSlug),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", elapsed),
	)
	return text, nil
}

// CodeOf returns the CompletionError code of err, or "" for other errors.
func CodeOf(err error) string {
	var cerr *CompletionError
	if errors.As(err, &cerr) && cerr != nil {
		return cerr.Code
	}
	return ""
}
