package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/observability"
	"github.com/visiprobe/visiprobe/internal/server/handlers"
)

// ScanPath is the streaming scan endpoint.
const ScanPath = "/api/ai-scan"

// AdminSignalPath accepts signal requests when Options.AdminToken is set.
const AdminSignalPath = "/admin/signal"

const (
	adminRequestsPerMinute = 10
	adminBurst             = 5
)

var probeRoutes = map[string]http.HandlerFunc{
	"/health":         handlers.HealthHandler,
	"/health/live":    handlers.LivenessHandler,
	"/health/ready":   handlers.ReadinessHandler,
	"/health/startup": handlers.StartupHandler,
	"/version":        handlers.VersionHandler,
}

func (s *Server) registerRoutes() {
	for path, handler := range probeRoutes {
		s.router.Get(path, handler)
	}
	s.router.Get("/metrics", MetricsHandler)

	if s.opts.Scanner != nil {
		s.router.Method(http.MethodPost, ScanPath, &handlers.ScanHandler{
			Scanner:           s.opts.Scanner,
			TrustForwardedFor: s.opts.TrustForwardedFor,
			Logger:            s.opts.Logger,
		})
	}

	if s.opts.AdminToken != "" {
		s.registerAdminSignals()
	}
}

// registerAdminSignals exposes the gofulmen signal handler behind a bearer
// token, letting operators trigger a graceful shutdown or reload remotely.
func (s *Server) registerAdminSignals() {
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: adminRequestsPerMinute,
		RateBurst: adminBurst,
	})
	s.router.Post(AdminSignalPath, handler.ServeHTTP)

	if logger := observability.ServerLogger; logger != nil {
		logger.Warn("Admin signal endpoint enabled; keep it off the public internet",
			zap.String("path", AdminSignalPath),
			zap.Int("requests_per_minute", adminRequestsPerMinute),
			zap.Int("burst", adminBurst))
	}
}
