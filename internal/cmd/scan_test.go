package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/core/engine"
	apperrors "github.com/visiprobe/visiprobe/internal/errors"
	"github.com/visiprobe/visiprobe/internal/output"
)

const knownAnswer = `**Visibility:** Acme Plumbing is a family-owned plumber in Austin, Texas.
Acme Plumbing was founded in 1998 and is known for emergency repairs.
Customers reach Acme Plumbing through acmeplumbing.com.

**Competitors:**
- Roto-Rooter
- Mr. Rooter

**Action Plan:** Keep listings current.`

const unknownAnswer = "**Visibility:** I don't have specific information about this business."

// newGateway stubs the chat completions endpoint. Discovery requests get a
// profile, "unknown/model" gets a no-knowledge answer and everything else is
// answered as a well-known business.
func newGateway(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		content := knownAnswer
		switch req.Model {
		case "discovery/model":
			content = `{"name":"Acme Plumbing","type":"plumber","location":"Austin, TX","description":"Residential plumbing"}`
		case "unknown/model":
			content = unknownAnswer
		case "broken/model":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream down"}}`))
			return
		}

		body, err := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		})
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, key := range []string{"OPENROUTER_API_KEY", "VISIPROBE_API_KEY", "VISIPROBE_AILINK_API_KEY"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func scanConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	isolateConfig(t)
	cfg, err := config.Load(config.Options{Overrides: []map[string]any{{
		"ailink": map[string]any{"base_url": baseURL, "api_key": "test-key"},
		"scan": map[string]any{
			"discovery_model": "discovery/model",
			"platforms": []map[string]any{
				{"id": "chatgpt", "display_name": "ChatGPT", "model": "openai/gpt-4o"},
				{"id": "quiet", "display_name": "Quiet AI", "model": "unknown/model"},
				{"id": "down", "display_name": "Down AI", "model": "broken/model"},
			},
		},
	}}})
	require.NoError(t, err)
	return cfg
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestRunScanStreamsNDJSON(t *testing.T) {
	srv, calls := newGateway(t)
	cfg := scanConfig(t, srv.URL)

	var out, progress bytes.Buffer
	complete, err := runScan(testCommand(), cfg, "https://www.acmeplumbing.com/about", output.FormatNDJSON, &out, &progress)
	require.NoError(t, err)
	require.NotNil(t, complete)
	assert.Empty(t, progress.String())
	assert.Equal(t, int32(4), calls.Load())

	var kinds []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var record struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		kinds = append(kinds, record.Event)
	}
	assert.Equal(t, []string{
		"scanning", // discovery
		"scanning", "result",
		"scanning", "result",
		"scanning", "result",
		"complete",
	}, kinds)

	assert.Equal(t, "acmeplumbing.com", complete.Domain)
	assert.Equal(t, 3, complete.Total)
	assert.Equal(t, 1, complete.Score)
	require.Len(t, complete.Results, 3)
	assert.True(t, complete.Results[0].Found)
	assert.Equal(t, []string{"Roto-Rooter", "Mr. Rooter"}, complete.Results[0].Competitors)
	assert.False(t, complete.Results[1].Found)
	assert.Zero(t, complete.Results[1].Visibility)
	assert.Equal(t, "error", string(complete.Results[2].Status))
}

func TestRunScanTableReportsProgress(t *testing.T) {
	srv, _ := newGateway(t)
	cfg := scanConfig(t, srv.URL)

	var out, progress bytes.Buffer
	_, err := runScan(testCommand(), cfg, "acmeplumbing.com", output.FormatTable, &out, &progress)
	require.NoError(t, err)

	assert.Contains(t, progress.String(), "ChatGPT")
	assert.NotContains(t, progress.String(), "Found on")

	report := out.String()
	assert.Contains(t, report, "ChatGPT")
	assert.Contains(t, report, "Quiet AI")
	assert.Contains(t, report, "Roto-Rooter")
	assert.Contains(t, report, "1/3 platforms know")
}

func TestRunScanJSONReport(t *testing.T) {
	srv, _ := newGateway(t)
	cfg := scanConfig(t, srv.URL)

	var out bytes.Buffer
	_, err := runScan(testCommand(), cfg, "acmeplumbing.com", output.FormatJSON, &out, &bytes.Buffer{})
	require.NoError(t, err)

	var decoded struct {
		Score   int    `json:"score"`
		Total   int    `json:"total"`
		Domain  string `json:"domain"`
		Results []struct {
			PlatformID string `json:"platformId"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.Score)
	assert.Equal(t, "acmeplumbing.com", decoded.Domain)
	require.Len(t, decoded.Results, 3)
	assert.Equal(t, "chatgpt", decoded.Results[0].PlatformID)
}

func TestRunScanRejectsBadInput(t *testing.T) {
	srv, calls := newGateway(t)
	cfg := scanConfig(t, srv.URL)

	var out bytes.Buffer
	_, err := runScan(testCommand(), cfg, "   ", output.FormatTable, &out, &bytes.Buffer{})
	require.ErrorIs(t, err, engine.ErrInvalidInput)
	assert.Empty(t, out.String())
	assert.Zero(t, calls.Load())
}

func TestRunScanWithoutCredential(t *testing.T) {
	srv, calls := newGateway(t)
	cfg := scanConfig(t, srv.URL)
	cfg.AILink.APIKey = "REPLACE_ME"

	_, err := runScan(testCommand(), cfg, "acmeplumbing.com", output.FormatTable, &bytes.Buffer{}, &bytes.Buffer{})
	require.ErrorIs(t, err, engine.ErrConfiguration)
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(err))
	assert.Zero(t, calls.Load())
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(&engine.RequestError{Kind: engine.ErrConfiguration, Message: "x"}))
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(errMemoryBackend))
	assert.Equal(t, foundry.ExitConfigInvalid, ExitCodeFor(apperrors.NewConfigInvalidError("bad")))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(&engine.RequestError{Kind: engine.ErrInvalidInput, Message: "x"}))
	assert.Equal(t, foundry.ExitFailure, ExitCodeFor(errors.New("boom")))
}
