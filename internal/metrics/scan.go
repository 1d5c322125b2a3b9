package metrics

import (
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"

	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/engine"
	"github.com/visiprobe/visiprobe/internal/observability"
)

// Scan metric names
const (
	ScanStartedTotal       = "scan_started_total"
	ScanCompletedTotal     = "scan_completed_total"
	ScanPlatformTotal      = "scan_platform_total"
	ScanFoundTotal         = "scan_found_total"
	ScanDurationMs         = "scan_duration_ms"
	ScanPlatformDurationMs = "scan_platform_duration_ms"
	ScanScore              = "scan_score"
	ScanRejectedTotal      = "scan_rejected_total"
)

// ScanRecorder emits scan metrics. A nil System falls back to the global
// observability.TelemetrySystem, and nothing is emitted when both are nil.
type ScanRecorder struct {
	System *telemetry.System
}

var _ engine.Recorder = (*ScanRecorder)(nil)

// NewScanRecorder returns a recorder bound to the global telemetry system.
func NewScanRecorder() *ScanRecorder {
	return &ScanRecorder{}
}

func (r *ScanRecorder) ScanStarted() {
	if sys := r.system(); sys != nil {
		_ = sys.Counter(ScanStartedTotal, 1, nil)
	}
}

func (r *ScanRecorder) PlatformFinished(platformID string, status core.ScanStatus, found bool, elapsed time.Duration) {
	sys := r.system()
	if sys == nil {
		return
	}
	_ = sys.Counter(ScanPlatformTotal, 1, map[string]string{
		"platform": platformID,
		"status":   string(status),
	})
	_ = sys.Histogram(ScanPlatformDurationMs, elapsed, map[string]string{
		"platform": platformID,
	})
	if found {
		_ = sys.Counter(ScanFoundTotal, 1, map[string]string{
			"platform": platformID,
		})
	}
}

func (r *ScanRecorder) ScanFinished(score, total int, elapsed time.Duration) {
	sys := r.system()
	if sys == nil {
		return
	}
	_ = sys.Counter(ScanCompletedTotal, 1, nil)
	_ = sys.Histogram(ScanDurationMs, elapsed, nil)
	if total > 0 {
		_ = sys.Gauge(ScanScore, float64(score)/float64(total), nil)
	}
}

func (r *ScanRecorder) ScanRejected(reason string) {
	if sys := r.system(); sys != nil {
		_ = sys.Counter(ScanRejectedTotal, 1, map[string]string{
			"reason": reason,
		})
	}
}

func (r *ScanRecorder) system() *telemetry.System {
	if r != nil && r.System != nil {
		return r.System
	}
	return observability.TelemetrySystem
}
