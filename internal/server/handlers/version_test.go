package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/appid"
	"github.com/visiprobe/visiprobe/internal/core"
)

func getVersion(t *testing.T) VersionResponse {
	t.Helper()
	rec := get(VersionHandler, "/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestVersionHandlerReportsBuildAndPlatforms(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2026-10-01T12:00:00Z")
	SetAppIdentity(appid.Identity{BinaryName: "example-service"})
	SetPlatforms([]core.PlatformSpec{
		{ID: "chatgpt", DisplayName: "ChatGPT", Model: "openai/gpt-4o", Kind: core.PlatformKindStandard},
	})
	t.Cleanup(func() {
		SetAppIdentity(appid.Get())
		SetPlatforms(nil)
	})

	resp := getVersion(t)
	assert.Equal(t, "example-service", resp.App.Name)
	assert.Equal(t, "1.2.3", resp.App.Version)
	assert.Equal(t, "abcd123", resp.App.Commit)
	assert.NotEmpty(t, resp.Dependencies.Gofulmen)
	assert.NotEmpty(t, resp.Dependencies.Crucible)
	assert.Equal(t, []PlatformInfo{{ID: "chatgpt", Name: "ChatGPT", Kind: "standard"}}, resp.Platforms)

	raw := get(VersionHandler, "/version").Body.String()
	assert.NotContains(t, raw, "gpt-4o")
}

func TestVersionHandlerDefaultsToBinaryName(t *testing.T) {
	SetAppIdentity(appid.Identity{})
	t.Cleanup(func() { SetAppIdentity(appid.Get()) })

	assert.Equal(t, "visiprobe", getVersion(t).App.Name)
}
