package metrics

import (
	"strconv"

	"github.com/visiprobe/visiprobe/internal/observability"
)

// Error metric names
const (
	APIErrorsTotal = "api_errors_total"
	PanicsTotal    = "panics_total"
)

// knownEndpoints bounds the endpoint label; anything else is "other".
var knownEndpoints = map[string]bool{
	"/api/ai-scan":    true,
	"/health":         true,
	"/health/live":    true,
	"/health/ready":   true,
	"/health/startup": true,
	"/version":        true,
	"/metrics":        true,
}

// EndpointLabel maps a request path onto a bounded label value.
func EndpointLabel(path string) string {
	if knownEndpoints[path] {
		return path
	}
	return "other"
}

// RecordHTTPError counts an error body written by the API.
func RecordHTTPError(path, code string, status int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(APIErrorsTotal, 1, map[string]string{
		"endpoint":    EndpointLabel(path),
		"error_code":  code,
		"http_status": strconv.Itoa(status),
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(PanicsTotal, 1, nil)
	}
}
