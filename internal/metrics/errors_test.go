package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/observability"
)

func TestEndpointLabelIsBounded(t *testing.T) {
	require.Equal(t, "/api/ai-scan", EndpointLabel("/api/ai-scan"))
	require.Equal(t, "/health/ready", EndpointLabel("/health/ready"))
	require.Equal(t, "other", EndpointLabel("/wp-login.php"))
	require.Equal(t, "other", EndpointLabel(""))
}

func TestRecordHTTPError(t *testing.T) {
	collector, sys := newCollector(t)
	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	RecordHTTPError("/api/ai-scan", "RATE_LIMITED", 429)
	RecordHTTPError("/random", "NOT_FOUND", 404)
	RecordPanic()

	require.Equal(t, 2, collector.CountMetricsByName(APIErrorsTotal))
	require.Equal(t, 1, collector.CountMetricsByName(PanicsTotal))

	observability.TelemetrySystem = nil
	RecordHTTPError("/api/ai-scan", "TIMEOUT", 504)
}
