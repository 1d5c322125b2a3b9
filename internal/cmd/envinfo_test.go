package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/config"
)

func TestWriteEnvInfo(t *testing.T) {
	isolateConfig(t)
	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writeEnvInfo(&out, cfg))
	text := out.String()
	for _, want := range []string{"BUILD", "RUNTIME", "SERVER", "COMPLETION GATEWAY", "SCAN", "RATE LIMIT", "memory"} {
		assert.Contains(t, text, want)
	}
	for _, p := range cfg.Scan.Platforms {
		assert.Contains(t, text, p.DisplayName)
	}
	assert.NotContains(t, text, "sk-or-", "credentials must never be printed")
}

func TestWriteEnvInfoWithoutConfig(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeEnvInfo(&out, nil))
	assert.Contains(t, out.String(), "RUNTIME")
	assert.NotContains(t, out.String(), "RATE LIMIT")
}
