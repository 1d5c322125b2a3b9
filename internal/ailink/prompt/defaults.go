package prompt

import (
	"embed"
	"fmt"
	"io/fs"
)

// Slugs of the built-in prompts.
const (
	SlugVisibilityStandard = "visibility-standard"
	SlugVisibilitySearch   = "visibility-search"
	SlugBusinessDiscovery  = "business-discovery"
)

//go:embed prompts/*.md
var builtinFS embed.FS

// LoadDefaults loads the embedded prompt set.
func LoadDefaults() ([]*Prompt, error) {
	names, err := fs.Glob(builtinFS, "prompts/*.md")
	if err != nil {
		return nil, fmt.Errorf("list embedded prompts: %w", err)
	}
	out := make([]*Prompt, 0, len(names))
	for _, name := range names {
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read embedded prompt %s: %w", name, err)
		}
		p, err := Load("builtin:"+name, data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
