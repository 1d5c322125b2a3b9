package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/sync/errgroup"

	"github.com/visiprobe/visiprobe/internal/metrics"
)

// Check and aggregate states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// HealthChecker is implemented by dependencies the scan API relies on.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status     string `json:"status"`
	Critical   bool   `json:"critical"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// HealthResponse is the aggregate /health body.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ProbeResponse is returned by the live, ready and startup probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type registeredCheck struct {
	checker  HealthChecker
	critical bool
}

// HealthManager runs registered dependency checks for the health probes.
// A failing critical check makes the service unhealthy; a failing optional
// check, such as the fail-open rate limit store, only degrades it.
type HealthManager struct {
	mu      sync.RWMutex
	checks  map[string]registeredCheck
	version string
	started time.Time
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checks:  make(map[string]registeredCheck),
		version: version,
		started: time.Now(),
	}
}

// RegisterChecker adds a critical check.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.register(name, checker, true)
}

// RegisterOptional adds a check whose failure degrades rather than fails.
func (hm *HealthManager) RegisterOptional(name string, checker HealthChecker) {
	hm.register(name, checker, false)
}

func (hm *HealthManager) register(name string, checker HealthChecker, critical bool) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[name] = registeredCheck{checker: checker, critical: critical}
}

// Run executes every registered check concurrently under timeout.
func (hm *HealthManager) Run(ctx context.Context, timeout time.Duration) map[string]CheckResult {
	hm.mu.RLock()
	checks := make(map[string]registeredCheck, len(hm.checks))
	for name, check := range hm.checks {
		checks[name] = check
	}
	hm.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]CheckResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		g.Go(func() error {
			start := time.Now()
			err := check.checker.CheckHealth(gctx)
			elapsed := time.Since(start)
			metrics.RecordHealthCheck(name, err == nil, elapsed)

			result := CheckResult{Status: StatusHealthy, Critical: check.critical, DurationMs: elapsed.Milliseconds()}
			switch {
			case err == nil:
			case gctx.Err() != nil:
				result.Status = StatusTimeout
				result.Error = gctx.Err().Error()
			default:
				result.Status = StatusUnhealthy
				result.Error = err.Error()
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Overall folds check results into one status.
func Overall(results map[string]CheckResult) string {
	status := StatusHealthy
	for _, result := range results {
		if result.Status == StatusHealthy {
			continue
		}
		if result.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}

// HealthHandler serves the aggregate report. Degraded still answers 200.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	results := hm.Run(r.Context(), 5*time.Second)
	status := Overall(results)
	if status == StatusUnhealthy {
		respondWithError(w, r, unavailable("aggregate health check failed", "aggregate", results))
		return
	}
	writeJSON(w, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(hm.started).Truncate(time.Second).String(),
		Checks:    results,
	})
}

// LivenessHandler reports that the process is serving. It runs no dependency
// checks so an unreachable gateway or store never gets the process restarted.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ProbeResponse{Status: "alive", Timestamp: time.Now().UTC()})
}

// ReadinessHandler answers 503 while a critical dependency is failing.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "ready", 5*time.Second)
}

// StartupHandler answers 503 until critical dependencies pass once.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, "startup", 3*time.Second)
}

func (hm *HealthManager) probe(w http.ResponseWriter, r *http.Request, name string, timeout time.Duration) {
	results := hm.Run(r.Context(), timeout)
	status := Overall(results)
	if status == StatusUnhealthy {
		respondWithError(w, r, unavailable(name+" probe failed", name, results))
		return
	}
	writeJSON(w, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
}

func unavailable(message, probe string, results map[string]CheckResult) *errors.ErrorEnvelope {
	statuses := make(map[string]string, len(results))
	var failing []string
	for name, result := range results {
		statuses[name] = result.Status
		if result.Status != StatusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", message).WithDetails(map[string]interface{}{
		"probe":  probe,
		"checks": statuses,
	})
	if len(failing) > 0 {
		if updated, err := envelope.WithContext(map[string]interface{}{"failing_checks": failing}); err == nil {
			envelope = updated
		}
	}
	return envelope
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

var globalHealthManager *HealthManager

// InitHealthManager replaces the process-wide manager behind the route handlers.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func withGlobal(probe string, serve func(*HealthManager, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hm := globalHealthManager; hm != nil {
			serve(hm, w, r)
			return
		}
		respondWithError(w, r, unavailable("health manager not initialized", probe, nil))
	}
}

var (
	HealthHandler    = withGlobal("aggregate", (*HealthManager).HealthHandler)
	LivenessHandler  = withGlobal("live", (*HealthManager).LivenessHandler)
	ReadinessHandler = withGlobal("ready", (*HealthManager).ReadinessHandler)
	StartupHandler   = withGlobal("startup", (*HealthManager).StartupHandler)
)
