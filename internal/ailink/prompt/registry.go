package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Registry resolves prompts by slug.
type Registry interface {
	Get(slug string) (*Prompt, error)
	List() []*Prompt
}

// RequiredSlugs are the prompts a scan renders; every registry served to the
// engine must resolve them.
var RequiredSlugs = []string{SlugBusinessDiscovery, SlugVisibilityStandard, SlugVisibilitySearch}

type mapRegistry map[string]*Prompt

// NewRegistry indexes prompts by slug. Slugs must be present and unique.
func NewRegistry(prompts []*Prompt) (Registry, error) {
	reg := make(mapRegistry, len(prompts))
	for _, p := range prompts {
		if p == nil {
			continue
		}
		slug := strings.TrimSpace(p.Config.Slug)
		if slug == "" {
			return nil, fmt.Errorf("prompt %s has no slug", p.Source)
		}
		if prev, dup := reg[slug]; dup {
			return nil, fmt.Errorf("prompt slug %q defined by both %s and %s", slug, prev.Source, p.Source)
		}
		reg[slug] = p
	}
	return reg, nil
}

func (r mapRegistry) Get(slug string) (*Prompt, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("prompt slug is required")
	}
	p, ok := r[slug]
	if !ok {
		return nil, fmt.Errorf("prompt %q not found", slug)
	}
	return p, nil
}

// List returns prompts sorted by slug.
func (r mapRegistry) List() []*Prompt {
	out := make([]*Prompt, 0, len(r))
	for _, p := range r {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Config.Slug < out[j].Config.Slug })
	return out
}

// DefaultRegistry serves the embedded prompt set.
func DefaultRegistry() (Registry, error) {
	return NewRegistryWithOverrides("")
}

// NewRegistryWithOverrides serves the embedded prompts with any file in dir
// replacing the built-in of the same slug. Extra slugs in dir are kept. The
// result is rejected if a scan prompt cannot be resolved.
func NewRegistryWithOverrides(dir string) (Registry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(dir) != "" {
		overrides, err := LoadFromDir(dir)
		if err != nil {
			return nil, err
		}
		bySlug := make(map[string]int, len(prompts))
		for i, p := range prompts {
			bySlug[p.Config.Slug] = i
		}
		for _, p := range overrides {
			if i, ok := bySlug[p.Config.Slug]; ok {
				prompts[i] = p
				continue
			}
			bySlug[p.Config.Slug] = len(prompts)
			prompts = append(prompts, p)
		}
	}

	reg, err := NewRegistry(prompts)
	if err != nil {
		return nil, err
	}
	for _, slug := range RequiredSlugs {
		if _, err := reg.Get(slug); err != nil {
			return nil, fmt.Errorf("prompt set incomplete: %w", err)
		}
	}
	return reg, nil
}
