package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/observability"
)

func newCollector(t *testing.T) (*telemetrytesting.FakeCollector, *telemetry.System) {
	t.Helper()
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)
	return collector, sys
}

func TestScanRecorderEmits(t *testing.T) {
	collector, sys := newCollector(t)
	recorder := &ScanRecorder{System: sys}

	recorder.ScanStarted()
	recorder.PlatformFinished("chatgpt", core.ScanStatusComplete, true, 120*time.Millisecond)
	recorder.PlatformFinished("gemini", core.ScanStatusError, false, 30*time.Second)
	recorder.ScanFinished(1, 2, 31*time.Second)
	recorder.ScanRejected("rate_limited")

	require.Equal(t, 1, collector.CountMetricsByName(ScanStartedTotal))
	require.Equal(t, 2, collector.CountMetricsByName(ScanPlatformTotal))
	require.Equal(t, 1, collector.CountMetricsByName(ScanFoundTotal))
	require.Equal(t, 2, collector.CountMetricsByName(ScanPlatformDurationMs))
	require.Equal(t, 1, collector.CountMetricsByName(ScanDurationMs))
	require.Equal(t, 1, collector.CountMetricsByName(ScanRejectedTotal))
}

func TestScanRecorderUsesGlobalSystem(t *testing.T) {
	collector, sys := newCollector(t)
	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	NewScanRecorder().ScanStarted()
	require.Equal(t, 1, collector.CountMetricsByName(ScanStartedTotal))
}

func TestScanRecorderWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	recorder := NewScanRecorder()
	recorder.ScanStarted()
	recorder.PlatformFinished("chatgpt", core.ScanStatusComplete, true, time.Second)
	recorder.ScanFinished(0, 0, time.Second)
	recorder.ScanRejected("invalid_input")
}
