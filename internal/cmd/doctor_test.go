package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/store"
	"github.com/visiprobe/visiprobe/internal/output"
)

func redisConfig(t *testing.T, addr string) *config.Config {
	t.Helper()
	isolateConfig(t)
	cfg, err := config.Load(config.Options{Overrides: []map[string]any{{
		"ailink":     map[string]any{"api_key": "test-key"},
		"rate_limit": map[string]any{"backend": "redis", "redis": map[string]any{"addr": addr}},
	}}})
	require.NoError(t, err)
	return cfg
}

func checkByName(t *testing.T, checks []doctorCheck, name string) doctorCheck {
	t.Helper()
	for _, check := range checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %q not found", name)
	return doctorCheck{}
}

func TestDoctorChecksHealthyRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr.Addr())

	checks := runDoctorChecks(context.Background(), cfg, nil)

	assert.Equal(t, checkOK, checkByName(t, checks, "Checking completion credential").Status)
	assert.Equal(t, checkOK, checkByName(t, checks, "Checking prompts").Status)
	assert.Equal(t, "3 loaded", checkByName(t, checks, "Checking prompts").Detail)
	assert.Equal(t, checkOK, checkByName(t, checks, "Checking platforms").Status)

	backend := checkByName(t, checks, "Checking rate limit backend")
	assert.Equal(t, checkOK, backend.Status)
	assert.Equal(t, "redis "+mr.Addr(), backend.Detail)
}

func TestDoctorChecksReportFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr.Addr())
	cfg.AILink.APIKey = ""
	mr.SetError("LOADING")

	checks := runDoctorChecks(context.Background(), cfg, nil)
	assert.Equal(t, checkFail, checkByName(t, checks, "Checking completion credential").Status)
	assert.Equal(t, checkFail, checkByName(t, checks, "Checking rate limit backend").Status)
}

func TestDoctorChecksMemoryBackendAndConfigError(t *testing.T) {
	isolateConfig(t)
	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)

	checks := runDoctorChecks(context.Background(), cfg, nil)
	assert.Equal(t, "memory (per process)", checkByName(t, checks, "Checking rate limit backend").Detail)

	checks = runDoctorChecks(context.Background(), nil, errors.New("bad yaml"))
	last := checks[len(checks)-1]
	assert.Equal(t, "Checking configuration", last.Name)
	assert.Equal(t, checkFail, last.Status)
	assert.Equal(t, "bad yaml", last.Detail)
}

func TestBuildInitConfigLoads(t *testing.T) {
	isolateConfig(t)
	body := buildInitConfig("sk-or-init")
	assert.True(t, strings.HasPrefix(body, "# visiprobe config"))

	path := t.TempDir() + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load(config.Options{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "sk-or-init", cfg.AILink.APIKey)
	assert.Equal(t, config.BackendMemory, cfg.RateLimit.Backend)
}

func TestOpenRateLimitAdminRejectsMemory(t *testing.T) {
	isolateConfig(t)
	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)

	_, err = openRateLimitAdmin(context.Background(), cfg)
	require.ErrorIs(t, err, errMemoryBackend)
}

func TestRateLimitListAndReset(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr.Addr())
	ctx := context.Background()

	backend, err := openRateLimitAdmin(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	start := time.Now().Add(-10 * time.Minute).Truncate(time.Millisecond)
	for _, identity := range []string{"10.0.0.1", "10.0.0.2", "203.0.113.9"} {
		require.NoError(t, backend.Store.UpdateRateLimit(ctx, identity, &core.RateLimitState{RequestCount: 2, WindowStart: start}))
	}

	entries, err := backend.Admin.ListRateLimits(ctx, store.RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var listed bytes.Buffer
	require.NoError(t, writeRateLimitList(&listed, output.FormatJSON, entries, time.Hour))
	var rows []rateLimitRow
	require.NoError(t, json.Unmarshal(listed.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "10.0.0.1", rows[0].Identity)
	assert.Equal(t, 2, rows[0].RequestCount)

	listed.Reset()
	require.NoError(t, writeRateLimitList(&listed, output.FormatTable, entries, time.Hour))
	assert.Contains(t, listed.String(), "203.0.113.9: count=2")

	cmd := testCommand()
	dry, err := resetRateLimits(cmd, backend.Admin, store.RateLimitQuery{Prefix: "10.0."}, true)
	require.NoError(t, err)
	assert.Equal(t, rateLimitResetResult{Matched: 2, DryRun: true}, dry)

	done, err := resetRateLimits(cmd, backend.Admin, store.RateLimitQuery{Prefix: "10.0."}, false)
	require.NoError(t, err)
	assert.Equal(t, rateLimitResetResult{Matched: 2, Deleted: 2}, done)

	var summary bytes.Buffer
	require.NoError(t, writeRateLimitResetResult(output.FormatTable, &summary, done))
	assert.Equal(t, "Deleted 2/2 rate limit entr(ies)\n", summary.String())

	entries, err = backend.Admin.ListRateLimits(ctx, store.RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "203.0.113.9", entries[0].Identity)
}

func TestResolveOutPath(t *testing.T) {
	_, err := resolveOutPath("a.json", "dir", "x", output.FormatJSON)
	require.Error(t, err)

	path, err := resolveOutPath(" report.json ", "", "x", output.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "report.json", path)

	dir := t.TempDir()
	path, err = resolveOutPath("", dir, "rate-limit.list", output.FormatNDJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "rate-limit.list.ndjson"))
}
