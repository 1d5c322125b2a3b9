package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/visiprobe/visiprobe/internal/errors"
	"github.com/visiprobe/visiprobe/internal/output"
)

func TestWriteVersion(t *testing.T) {
	SetVersionInfo("1.4.0", "abc123", "2026-10-01")

	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, output.FormatTable, false))
	assert.Equal(t, GetAppIdentity().BinaryName+" 1.4.0\n", buf.String())

	buf.Reset()
	require.NoError(t, writeVersion(&buf, output.FormatTable, true))
	assert.Contains(t, buf.String(), "abc123")
	assert.Contains(t, buf.String(), runtime.Version())

	buf.Reset()
	require.NoError(t, writeVersion(&buf, output.FormatJSON, true))
	var report versionReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, "1.4.0", report.Version)
	assert.Equal(t, "2026-10-01", report.BuildDate)
}

func TestReportExit(t *testing.T) {
	meta := exitMeta{code: 30, name: "CONFIG_INVALID", description: "configuration is invalid"}

	var buf bytes.Buffer
	reportExit(&buf, meta, "Command execution failed", apperrors.WrapConfigInvalid(context.Background(), assert.AnError, "bad config"))
	assert.Contains(t, buf.String(), "[CONFIG_INVALID]: bad config")
	assert.Contains(t, buf.String(), "Cause: "+assert.AnError.Error())
	assert.Contains(t, buf.String(), "Exit code 30 (CONFIG_INVALID)")

	buf.Reset()
	reportExit(&buf, exitMeta{code: 1}, "boom", nil)
	assert.Equal(t, "Error: boom\n", buf.String())
}

func TestIsUsageError(t *testing.T) {
	assert.True(t, IsUsageError(errors.New(`unknown command "scna" for "visiprobe"`)))
	assert.True(t, IsUsageError(errors.New("accepts 1 arg(s), received 0")))
	assert.False(t, IsUsageError(errors.New("store path or url is required")))
	assert.False(t, IsUsageError(nil))
}
