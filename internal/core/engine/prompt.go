package engine

import (
	"fmt"
	"strings"

	"github.com/visiprobe/visiprobe/internal/ailink/prompt"
	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/discovery"
)

// PromptBuilder renders the visibility prompt for one platform.
type PromptBuilder struct {
	Prompts prompt.Registry
}

// SlugFor returns the prompt slug used for a platform kind.
func SlugFor(kind core.PlatformKind) string {
	if kind == core.PlatformKindSearch {
		return prompt.SlugVisibilitySearch
	}
	return prompt.SlugVisibilityStandard
}

// Build renders the prompt for profile. The location clause is left out when
// the location is blank or "unknown".
func (b *PromptBuilder) Build(profile core.BusinessProfile, host string, kind core.PlatformKind) (string, error) {
	if b == nil || b.Prompts == nil {
		return "", fmt.Errorf("prompt registry not configured")
	}
	def, err := b.Prompts.Get(SlugFor(kind))
	if err != nil {
		return "", err
	}

	vars := map[string]string{
		"business_name": strings.TrimSpace(profile.Name),
		"business_type": strings.TrimSpace(profile.Type),
		"domain":        host,
	}
	if location := strings.TrimSpace(profile.Location); location != "" && !strings.EqualFold(location, discovery.DefaultLocation) {
		vars["location"] = location
	}
	if description := strings.TrimSpace(profile.Description); description != "" && description != discovery.DefaultDescription {
		vars["description"] = description
	}
	if vars["business_type"] == "" {
		vars["business_type"] = discovery.DefaultType
	}
	if vars["business_name"] == "" {
		vars["business_name"] = host
	}

	return def.Render(vars)
}
