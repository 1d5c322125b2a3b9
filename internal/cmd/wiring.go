package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/ailink"
	"github.com/visiprobe/visiprobe/internal/ailink/prompt"
	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/core/discovery"
	"github.com/visiprobe/visiprobe/internal/core/engine"
	"github.com/visiprobe/visiprobe/internal/core/scoring"
	"github.com/visiprobe/visiprobe/internal/core/store"
	"github.com/visiprobe/visiprobe/internal/server/handlers"
)

// errMemoryBackend is returned by admin commands when counters live in the
// server process only.
var errMemoryBackend = errors.New("rate limit backend is memory; state lives in the running server")

// buildOrchestrator wires the completion service, prompts, discovery and
// scoring from cfg.
func buildOrchestrator(cfg *config.Config, recorder engine.Recorder, logger *zap.Logger) (*engine.Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	prompts, err := prompt.NewRegistryWithOverrides(cfg.AILink.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	service := ailink.NewService(cfg.AILink, logger.Named("ailink"))

	discoverer := discovery.New(service, prompts, logger.Named("discovery"))
	if cfg.Scan.DiscoveryModel != "" {
		discoverer.Model = cfg.Scan.DiscoveryModel
	}
	if cfg.Scan.DiscoveryTimeout > 0 {
		discoverer.Timeout = cfg.Scan.DiscoveryTimeout
	}

	return &engine.Orchestrator{
		Provider:   service,
		Discoverer: discoverer,
		Prompts:    &engine.PromptBuilder{Prompts: prompts},
		Scorer:     scoring.New(cfg.Scoring),
		Platforms:  cfg.Scan.Platforms,
		Options: engine.Options{
			PlatformTimeout:   cfg.Scan.PlatformTimeout,
			Parallel:          cfg.Scan.Parallel,
			MaxConcurrency:    cfg.Scan.MaxConcurrency,
			AnnounceDiscovery: cfg.Scan.AnnounceDiscovery,
			ExcerptLength:     cfg.Scan.ExcerptLength,
		},
		Recorder: recorder,
		Logger:   logger.Named("scan"),
	}, nil
}

// rateLimitBackend is an opened rate-limit store with its lifecycle hooks.
type rateLimitBackend struct {
	Store  engine.RateLimitStore
	Admin  store.RateLimitAdmin
	Health handlers.HealthChecker
	Close  func() error
}

// openRateLimitBackend opens the configured backend. The memory backend's
// sweeper runs until ctx ends.
func openRateLimitBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*rateLimitBackend, error) {
	window := cfg.RateLimitWindow()
	switch cfg.RateLimit.Backend {
	case config.BackendMemory, "":
		mem := store.NewMemory()
		if cfg.RateLimit.SweepInterval > 0 {
			go mem.RunSweeper(ctx, cfg.RateLimit.SweepInterval, window)
		}
		return &rateLimitBackend{Store: mem, Admin: mem, Close: func() error { return nil }}, nil
	case config.BackendRedis:
		rdb, err := store.NewRedis(ctx, cfg.RateLimit.Redis, window)
		if err != nil {
			return nil, err
		}
		return &rateLimitBackend{Store: rdb, Admin: rdb, Health: rdb, Close: rdb.Close}, nil
	case config.BackendLibsql:
		db, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &rateLimitBackend{Store: db, Admin: db, Health: db, Close: db.Close}, nil
	default:
		if logger != nil {
			logger.Error("unknown rate limit backend", zap.String("backend", cfg.RateLimit.Backend))
		}
		return nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.RateLimit.Backend)
	}
}

// openRateLimitAdmin opens a shared backend for the rate-limit commands.
func openRateLimitAdmin(ctx context.Context, cfg *config.Config) (*rateLimitBackend, error) {
	if cfg.RateLimit.Backend == config.BackendMemory || cfg.RateLimit.Backend == "" {
		return nil, errMemoryBackend
	}
	return openRateLimitBackend(ctx, cfg, nil)
}

func newRateLimiter(cfg *config.Config, st engine.RateLimitStore, logger *zap.Logger) *engine.RateLimiter {
	return &engine.RateLimiter{
		Store: st,
		Limit: engine.RateLimit{
			RequestsPerWindow: cfg.RateLimit.Requests,
			WindowDuration:    cfg.RateLimitWindow(),
		},
		Logger: logger,
	}
}
