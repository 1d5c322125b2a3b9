package prompt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/schema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/prompt.schema.json
var promptSchema []byte

var promptValidator, promptValidatorErr = schema.NewValidator(promptSchema)

var placeholder = regexp.MustCompile(`\{\{\s*(?:#if\s+)?([a-z_][a-z0-9_]*)\s*\}\}`)

// Load parses one prompt file: YAML frontmatter between --- fences followed
// by the template body, or a plain YAML document with a template key. The
// config is checked against the embedded schema and every placeholder must be
// a declared variable.
func Load(source string, data []byte) (*Prompt, error) {
	cfg, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}
	if strings.TrimSpace(cfg.Template) == "" {
		cfg.Template = strings.TrimSpace(body)
	}
	if cfg.Template == "" {
		return nil, fmt.Errorf("prompt %s missing template", source)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate prompt %s: %w", source, err)
	}
	if undeclared := undeclaredVariables(cfg); len(undeclared) > 0 {
		return nil, fmt.Errorf("prompt %s uses undeclared variables: %s", source, strings.Join(undeclared, ", "))
	}
	return &Prompt{Config: cfg, Source: source}, nil
}

// LoadFromDir loads every *.md prompt in dir.
func LoadFromDir(dir string) ([]*Prompt, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	out := make([]*Prompt, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-configured prompts dir
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", path, err)
		}
		p, err := Load(path, data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func splitFrontmatter(data []byte) (Config, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Config{}, "", fmt.Errorf("empty prompt")
	}

	var cfg Config
	text := strings.ReplaceAll(string(trimmed), "\r\n", "\n")
	rest, fenced := strings.CutPrefix(text, "---\n")
	if !fenced {
		if err := yaml.Unmarshal(trimmed, &cfg); err != nil {
			return Config{}, "", fmt.Errorf("invalid yaml: %w", err)
		}
		return cfg, "", nil
	}

	front, body, closed := strings.Cut(rest, "\n---")
	if !closed {
		return Config{}, "", fmt.Errorf("unterminated frontmatter")
	}
	if err := yaml.Unmarshal([]byte(front), &cfg); err != nil {
		return Config{}, "", fmt.Errorf("invalid frontmatter: %w", err)
	}
	return cfg, strings.TrimPrefix(body, "\n"), nil
}

func validateConfig(cfg Config) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if promptValidatorErr != nil {
		return fmt.Errorf("compile prompt schema: %w", promptValidatorErr)
	}
	diagnostics, err := promptValidator.ValidateJSON(payload)
	if err != nil {
		return err
	}
	if len(diagnostics) > 0 {
		return fmt.Errorf("schema validation failed: %s", diagnostics[0].Message)
	}
	return nil
}

func undeclaredVariables(cfg Config) []string {
	declared := make(map[string]bool)
	for _, name := range cfg.Input.RequiredVariables {
		declared[name] = true
	}
	for _, name := range cfg.Input.OptionalVariables {
		declared[name] = true
	}

	seen := make(map[string]bool)
	var missing []string
	for _, match := range placeholder.FindAllStringSubmatch(cfg.Template, -1) {
		name := match[1]
		if name == "else" || declared[name] || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	sort.Strings(missing)
	return missing
}
