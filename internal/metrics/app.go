package metrics

import (
	"sync/atomic"
	"time"

	"github.com/visiprobe/visiprobe/internal/observability"
)

// Process-level series.
const (
	ActiveStreams       = "app_active_scan_streams"
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"
	ServerUptime        = "app_server_uptime_seconds"
)

var activeStreams atomic.Int64

func gauge(name string, value float64, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, labels)
	}
}

// StreamOpened counts an open scan stream and returns a func that closes it.
// The returned func is safe to call more than once.
func StreamOpened() func() {
	gauge(ActiveStreams, float64(activeStreams.Add(1)), nil)
	var closed atomic.Bool
	return func() {
		if closed.CompareAndSwap(false, true) {
			gauge(ActiveStreams, float64(activeStreams.Add(-1)), nil)
		}
	}
}

// OpenStreams returns the number of scan streams currently open.
func OpenStreams() int64 {
	return activeStreams.Load()
}

// RecordHealthCheck counts one probe of a named dependency and its latency.
func RecordHealthCheck(check string, healthy bool, elapsed time.Duration) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}
	outcome := "healthy"
	if !healthy {
		outcome = "unhealthy"
	}
	_ = sys.Counter(HealthCheckTotal, 1, map[string]string{"check": check, "status": outcome})
	_ = sys.Histogram(HealthCheckDuration, elapsed, map[string]string{"check": check})
}

func SetServerStartTime(unix int64) {
	gauge(ServerStartTime, float64(unix), nil)
}

func SetServerUptime(seconds int64) {
	gauge(ServerUptime, float64(seconds), nil)
}
