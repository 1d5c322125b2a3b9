package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/appid"
	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/core/engine"
	errwrap "github.com/visiprobe/visiprobe/internal/errors"
	"github.com/visiprobe/visiprobe/internal/metrics"
	"github.com/visiprobe/visiprobe/internal/observability"
	"github.com/visiprobe/visiprobe/internal/server"
	"github.com/visiprobe/visiprobe/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// credentialHealthChecker reports whether scans can reach the completion gateway.
type credentialHealthChecker struct {
	checker engine.CredentialChecker
}

func (c credentialHealthChecker) CheckHealth(ctx context.Context) error {
	if err := c.checker.CredentialStatus(); err != nil {
		return errwrap.NewConfigInvalidError(err.Error())
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streaming scan API",
	Long: `Start the HTTP server exposing POST /api/ai-scan as a server-sent event stream.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-validate configuration (restart to apply changes)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serverHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}
		return runServe(cmd.Context(), cfg)
	},
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	identity := GetAppIdentity()
	namespace := identity.MetricsNS

	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)
	logger := observability.ServerLogger

	componentLogger, err := observability.NewComponentLogger(identity.BinaryName, cfg.Logging.Level, true)
	if err != nil {
		return errwrap.WrapInternal(ctx, err, "component logger initialization failed")
	}
	defer func() { _ = componentLogger.Sync() }()

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(namespace, cfg.Metrics.Port); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
		metrics.SetServerStartTime(time.Now().Unix())
		go reportUptime(ctx, time.Now())
	}

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("metrics_port", observability.GetMetricsPort()),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
		zap.Bool("parallel", cfg.Scan.Parallel))

	if err := cfg.AILink.CredentialStatus(); err != nil {
		logger.Warn("Completion API key is not usable; scans will be rejected", zap.Error(err))
	}

	recorder := metrics.NewScanRecorder()
	orchestrator, err := buildOrchestrator(cfg, recorder, componentLogger)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "scan engine initialization failed")
	}

	scanner := &engine.Scanner{
		Credentials:  cfg.AILink,
		Orchestrator: orchestrator,
		Recorder:     recorder,
		Logger:       componentLogger.Named("scanner"),
	}

	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()
	hm.RegisterChecker("completion_credential", credentialHealthChecker{checker: cfg.AILink})
	if cfg.Metrics.Enabled {
		hm.RegisterOptional("telemetry", telemetryHealthChecker{})
	}

	var backend *rateLimitBackend
	if cfg.RateLimit.Enabled {
		backend, err = openRateLimitBackend(ctx, cfg, componentLogger)
		if err != nil {
			return errwrap.WrapExternalService(ctx, err, "rate limit backend unavailable")
		}
		scanner.Limiter = newRateLimiter(cfg, backend.Store, componentLogger.Named("ratelimit"))
		if backend.Health != nil {
			hm.RegisterOptional("rate_limit_store", backend.Health)
		}
	}

	handlers.SetAppIdentity(identity)
	handlers.SetPlatforms(cfg.Scan.Platforms)
	srv := server.New(server.Options{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		TrustForwardedFor: cfg.Server.TrustForwardedFor,
		MetricsPort:       cfg.Metrics.Port,
		Scanner:           scanner,
		Logger:            componentLogger.Named("http"),
		AdminToken:        os.Getenv(appid.EnvName("ADMIN_TOKEN")),
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Shutdown handlers run LIFO: HTTP server, rate limit backend, logger.
	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	if backend != nil {
		signals.OnShutdown(func(ctx context.Context) error {
			if err := backend.Close(); err != nil {
				logger.Warn("Rate limit backend close failed", zap.Error(err))
			}
			return nil
		})
	}

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...",
			zap.Int64("open_streams", metrics.OpenStreams()))
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}

		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: validating configuration")

		reloaded, err := config.Load(config.Options{ConfigFile: cfgFile})
		if err != nil {
			logger.Error("Configuration is invalid", zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		logger.Info("Configuration is valid; restart to apply changes",
			zap.String("rate_limit_backend", reloaded.RateLimit.Backend),
			zap.Int("platforms", len(reloaded.Scan.Platforms)))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return errwrap.WrapInternal(ctx, err, "server error")
	}

	return nil
}

func reportUptime(ctx context.Context, started time.Time) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetServerUptime(int64(time.Since(started).Seconds()))
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
