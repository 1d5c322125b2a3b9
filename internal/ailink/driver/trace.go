package driver

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// maxTracedResponse caps how much of a provider body lands in a trace line.
const maxTracedResponse = 64 << 10

// TraceEntry is one NDJSON line describing a provider round trip. Request
// bodies never include the API key, which travels in a header.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Driver      string          `json:"driver"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	Model       string          `json:"model,omitempty"`
	PromptSlug  string          `json:"prompt_slug,omitempty"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Truncated   bool            `json:"truncated,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

type traceFile struct {
	mu sync.Mutex
	f  *os.File
}

var activeTrace atomic.Pointer[traceFile]

// EnableTracing appends provider round trips to path until the returned func
// (or DisableTracing) is called. A second call replaces the active file.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	if previous := activeTrace.Swap(&traceFile{f: f}); previous != nil {
		previous.close()
	}
	return DisableTracing, nil
}

func DisableTracing() {
	if previous := activeTrace.Swap(nil); previous != nil {
		previous.close()
	}
}

func IsTracingEnabled() bool {
	return activeTrace.Load() != nil
}

// Trace records entry when tracing is enabled. Bodies that are not JSON are
// stored as JSON strings; oversized bodies are cut and flagged.
func Trace(entry TraceEntry) {
	tf := activeTrace.Load()
	if tf == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if len(entry.Response) > maxTracedResponse {
		entry.Response = entry.Response[:maxTracedResponse]
		entry.Truncated = true
	}
	if len(entry.Response) > 0 && !json.Valid(entry.Response) {
		entry.Response, _ = json.Marshal(string(entry.Response))
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	tf.write(append(line, '\n'))
}

func (tf *traceFile) write(line []byte) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if tf.f != nil {
		_, _ = tf.f.Write(line)
	}
}

func (tf *traceFile) close() {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if tf.f != nil {
		_ = tf.f.Close()
		tf.f = nil
	}
}
