package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/domain"
)

// CredentialChecker reports whether the completion gateway has a usable key.
type CredentialChecker interface {
	CredentialStatus() error
}

// Scanner validates a scan request and runs it.
type Scanner struct {
	Credentials  CredentialChecker
	Limiter      *RateLimiter
	Orchestrator *Orchestrator
	Recorder     Recorder
	Logger       *zap.Logger
}

// StartScan checks, in order, the credential, the URL and the caller's quota,
// then runs the scan. Request errors are *RequestError values returned before
// any event is emitted; a rejected URL consumes no quota. A nil Limiter skips
// rate limiting.
func (s *Scanner) StartScan(ctx context.Context, rawURL, identity string, emit EmitFunc) (*core.Complete, error) {
	logger := s.logger()
	if s.Orchestrator == nil {
		return nil, &RequestError{Kind: ErrConfiguration, Message: "scanner not configured"}
	}

	if s.Credentials != nil {
		if err := s.Credentials.CredentialStatus(); err != nil {
			s.recorder().ScanRejected("configuration")
			logger.Error("scan rejected: completion credential unusable", zap.Error(err))
			return nil, &RequestError{Kind: ErrConfiguration, Message: MessageKeyNotConfigured, Err: err}
		}
	}

	if strings.TrimSpace(rawURL) == "" {
		s.recorder().ScanRejected("invalid_input")
		return nil, &RequestError{Kind: ErrInvalidInput, Message: MessageURLRequired}
	}
	host, err := domain.Normalize(rawURL)
	if err != nil {
		s.recorder().ScanRejected("invalid_input")
		return nil, &RequestError{Kind: ErrInvalidInput, Message: MessageInvalidURL, Err: err}
	}

	if s.Limiter != nil {
		allowed, wait, err := s.Limiter.Allow(ctx, identity)
		if err != nil {
			logger.Warn("rate limit check failed open", zap.String("identity", identity), zap.Error(err))
		}
		if !allowed {
			s.recorder().ScanRejected("rate_limited")
			logger.Info("scan rate limited", zap.String("identity", identity), zap.Duration("retry_after", wait))
			return nil, &RequestError{Kind: ErrRateLimited, Message: MessageRateLimited, RetryAfter: wait}
		}
	}

	scanID := uuid.NewString()
	logger.Info("scan started", zap.String("scan_id", scanID), zap.String("domain", host), zap.String("identity", identity))

	orchestrator := *s.Orchestrator
	orchestrator.Logger = orchestrator.logger().With(zap.String("scan_id", scanID))
	return orchestrator.Run(ctx, host, emit)
}

func (s *Scanner) recorder() Recorder {
	if s.Recorder == nil {
		return nopRecorder{}
	}
	return s.Recorder
}

func (s *Scanner) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
