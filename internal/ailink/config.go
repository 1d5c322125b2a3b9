package ailink

import (
	"errors"
	"strings"
	"time"
)

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultMaxTokens   = 800
	DefaultTemperature = 0.1
	DefaultTimeout     = 30 * time.Second
)

var (
	// ErrNoCredential means no usable API key is configured.
	ErrNoCredential = errors.New("ailink: api key not configured")
	// ErrPlaceholderCredential means the configured key is a template placeholder.
	ErrPlaceholderCredential = errors.New("ailink: api key is a placeholder")
)

// Config defines the completion gateway configuration.
//
// A single APIKey is the common case. Credentials allows several keys for the
// same gateway, chosen by SelectionPolicy.
type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Referer        string        `mapstructure:"referer"`
	Title          string        `mapstructure:"title"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	// PromptsDir overrides built-in prompts by slug.
	PromptsDir string `mapstructure:"prompts_dir"`

	// SelectionPolicy controls which credential is chosen.
	// Supported values: "priority" (default), "round_robin".
	SelectionPolicy string `mapstructure:"selection_policy"`

	// DefaultCredential, if set, forces selecting the matching credential label.
	DefaultCredential string `mapstructure:"default_credential"`

	Credentials []CredentialConfig `mapstructure:"credentials"`
}

// CredentialConfig is a single API key.
type CredentialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Label    string `mapstructure:"label"`
	APIKey   string `mapstructure:"api_key"`
	Priority int    `mapstructure:"priority"`
}

// IsPlaceholderKey reports whether key is blank or an unfilled template value.
func IsPlaceholderKey(key string) bool {
	key = strings.TrimSpace(key)
	return key == "" || strings.Contains(strings.ToUpper(key), "REPLACE")
}

// AllCredentials returns APIKey as a "default" credential followed by Credentials.
func (c Config) AllCredentials() []CredentialConfig {
	creds := make([]CredentialConfig, 0, len(c.Credentials)+1)
	if key := strings.TrimSpace(c.APIKey); key != "" {
		creds = append(creds, CredentialConfig{Enabled: true, Label: "default", APIKey: key})
	}
	return append(creds, c.Credentials...)
}

// CredentialStatus returns nil when at least one enabled, non-placeholder key
// is configured.
func (c Config) CredentialStatus() error {
	sawPlaceholder := false
	for _, cred := range c.AllCredentials() {
		if !cred.Enabled {
			continue
		}
		if strings.TrimSpace(cred.APIKey) == "" {
			continue
		}
		if IsPlaceholderKey(cred.APIKey) {
			sawPlaceholder = true
			continue
		}
		return nil
	}
	if sawPlaceholder {
		return ErrPlaceholderCredential
	}
	return ErrNoCredential
}

func (c Config) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return DefaultMaxTokens
}

func (c Config) temperature() float64 {
	if c.Temperature > 0 {
		return c.Temperature
	}
	return DefaultTemperature
}

func (c Config) timeout() time.Duration {
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return DefaultTimeout
}
