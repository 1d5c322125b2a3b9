package appid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	identity := Get()
	require.Equal(t, "visiprobe", identity.BinaryName)
	require.True(t, strings.HasSuffix(identity.EnvPrefix, "_"))
	require.NotEmpty(t, identity.Description)
}

func TestEnvName(t *testing.T) {
	require.Equal(t, "VISIPROBE_PORT", EnvName("port"))
	require.Equal(t, "VISIPROBE_LOG_LEVEL", EnvName("_LOG_LEVEL"))
}
