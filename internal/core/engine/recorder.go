package engine

import (
	"time"

	"github.com/visiprobe/visiprobe/internal/core"
)

// Recorder receives scan metrics. The telemetry-backed implementation lives
// in internal/metrics.
type Recorder interface {
	ScanStarted()
	PlatformFinished(platformID string, status core.ScanStatus, found bool, elapsed time.Duration)
	ScanFinished(score, total int, elapsed time.Duration)
	ScanRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ScanStarted() {}

func (nopRecorder) PlatformFinished(string, core.ScanStatus, bool, time.Duration) {}

func (nopRecorder) ScanFinished(int, int, time.Duration) {}

func (nopRecorder) ScanRejected(string) {}
