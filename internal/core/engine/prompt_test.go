package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visiprobe/visiprobe/internal/ailink/prompt"
	"github.com/visiprobe/visiprobe/internal/core"
)

func newPromptBuilder(t *testing.T) *PromptBuilder {
	t.Helper()
	prompts, err := prompt.DefaultRegistry()
	require.NoError(t, err)
	return &PromptBuilder{Prompts: prompts}
}

func TestPromptBuildIncludesProfile(t *testing.T) {
	builder := newPromptBuilder(t)
	profile := core.BusinessProfile{Name: "Acme Plumbing Co", Type: "plumber", Location: "Austin, TX", Description: "Residential repairs"}

	text, err := builder.Build(profile, "acmeplumbing.com", core.PlatformKindStandard)
	require.NoError(t, err)
	require.Contains(t, text, "Acme Plumbing Co")
	require.Contains(t, text, "acmeplumbing.com")
	require.Contains(t, text, "plumber in Austin, TX")
	require.Contains(t, text, "Residential repairs")
	require.Contains(t, text, "**Visibility:**")
	require.Contains(t, text, "**Competitors:**")
	require.Contains(t, text, "**Action Plan:**")
	require.Contains(t, text, "I have no specific knowledge of this business")
}

func TestPromptBuildOmitsUnknownLocation(t *testing.T) {
	builder := newPromptBuilder(t)
	for _, location := range []string{"", "unknown", "Unknown"} {
		profile := core.BusinessProfile{Name: "Acme", Type: "plumber", Location: location, Description: "General business services"}
		text, err := builder.Build(profile, "acme.com", core.PlatformKindStandard)
		require.NoError(t, err)
		require.NotContains(t, text, "plumber in")
		require.NotContains(t, text, "unknown")
		require.NotContains(t, text, "Unknown")
		require.NotContains(t, text, "General business services")
	}
}

func TestPromptBuildSearchVariant(t *testing.T) {
	builder := newPromptBuilder(t)
	profile := core.BusinessProfile{Name: "Acme", Type: "plumber"}

	standard, err := builder.Build(profile, "acme.com", core.PlatformKindStandard)
	require.NoError(t, err)
	search, err := builder.Build(profile, "acme.com", core.PlatformKindSearch)
	require.NoError(t, err)
	require.NotEqual(t, standard, search)
	require.Equal(t, prompt.SlugVisibilitySearch, SlugFor(core.PlatformKindSearch))
	require.Equal(t, prompt.SlugVisibilityStandard, SlugFor(core.PlatformKindStandard))
}

func TestPromptBuildFillsBlankFields(t *testing.T) {
	builder := newPromptBuilder(t)
	text, err := builder.Build(core.BusinessProfile{}, "acme.com", core.PlatformKindStandard)
	require.NoError(t, err)
	require.Contains(t, text, "business")
	require.Contains(t, text, "acme.com")
}

func TestPromptBuildWithoutRegistry(t *testing.T) {
	_, err := (&PromptBuilder{}).Build(core.BusinessProfile{}, "acme.com", core.PlatformKindStandard)
	require.Error(t, err)
}
