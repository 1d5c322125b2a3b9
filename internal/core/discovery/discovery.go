// Package discovery infers what business sits behind a domain.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/ailink"
	"github.com/visiprobe/visiprobe/internal/ailink/prompt"
	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/domain"
)

// Profile defaults used when discovery cannot supply a field.
const (
	DefaultType        = "business"
	DefaultLocation    = "unknown"
	DefaultDescription = "General business services"

	DefaultTimeout = 15 * time.Second
)

// ErrNoJSON means the completion held no JSON object.
var ErrNoJSON = errors.New("no json object in response")

var codeFence = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_-]*[ \t]*$")

// Discoverer asks a model to describe the business behind a domain.
type Discoverer struct {
	Provider ailink.CompletionProvider
	Prompts  prompt.Registry
	Model    string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// New returns a Discoverer using the default model and timeout.
func New(provider ailink.CompletionProvider, prompts prompt.Registry, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		Provider: provider,
		Prompts:  prompts,
		Model:    core.DefaultDiscoveryModel,
		Timeout:  DefaultTimeout,
		Logger:   logger,
	}
}

// Discover always returns a usable profile. Any failure degrades to
// Fallback(domain), field by field where possible.
func (d *Discoverer) Discover(ctx context.Context, host string) core.BusinessProfile {
	ctx, span := otel.Tracer("github.com/visiprobe/visiprobe/internal/core/discovery").Start(ctx, "scan.discovery")
	defer span.End()
	span.SetAttributes(attribute.String("scan.domain", host))

	logger := d.logger()
	profile, err := d.discover(ctx, host)
	if err != nil {
		span.SetAttributes(attribute.Bool("discovery.degraded", true))
		logger.Warn("business discovery degraded",
			zap.String("domain", host),
			zap.String("code", ailink.CodeOf(err)),
			zap.Error(err),
		)
		return profile
	}

	logger.Debug("business discovered",
		zap.String("domain", host),
		zap.String("name", profile.Name),
		zap.String("type", profile.Type),
		zap.String("location", profile.Location),
	)
	return profile
}

func (d *Discoverer) discover(ctx context.Context, host string) (core.BusinessProfile, error) {
	fallback := Fallback(host)
	if d == nil || d.Provider == nil || d.Prompts == nil {
		return fallback, fmt.Errorf("discoverer not configured")
	}

	def, err := d.Prompts.Get(prompt.SlugBusinessDiscovery)
	if err != nil {
		return fallback, err
	}
	text, err := def.Render(map[string]string{"domain": host})
	if err != nil {
		return fallback, err
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	model := strings.TrimSpace(d.Model)
	if model == "" {
		model = core.DefaultDiscoveryModel
	}

	raw, err := d.Provider.Complete(ailink.WithPromptSlug(ctx, prompt.SlugBusinessDiscovery), model, text, timeout)
	if err != nil {
		return fallback, err
	}
	return ParseProfile(raw, host)
}

func (d *Discoverer) logger() *zap.Logger {
	if d == nil || d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// ParseProfile decodes a completion into a profile. Missing or blank fields
// take their fallback values. The returned profile is always usable; err
// reports whether the JSON itself could be read.
func ParseProfile(raw, host string) (core.BusinessProfile, error) {
	profile := Fallback(host)

	body := codeFence.ReplaceAllString(raw, "")
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start == -1 || end <= start {
		return profile, ErrNoJSON
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(body[start:end+1]), &fields); err != nil {
		return profile, fmt.Errorf("decode profile: %w", err)
	}

	if v := stringField(fields, "name"); v != "" {
		profile.Name = v
	}
	if v := stringField(fields, "type"); v != "" {
		profile.Type = v
	}
	if v := stringField(fields, "location"); v != "" {
		profile.Location = v
	}
	if v := stringField(fields, "description"); v != "" {
		profile.Description = v
	}
	return profile, nil
}

// Fallback derives a profile from the domain alone.
func Fallback(host string) core.BusinessProfile {
	return core.BusinessProfile{
		Name:        NameFromDomain(host),
		Type:        DefaultType,
		Location:    DefaultLocation,
		Description: DefaultDescription,
	}
}

// NameFromDomain turns "acme-plumbing.com" into "Acme Plumbing".
func NameFromDomain(host string) string {
	words := strings.Fields(strings.ReplaceAll(domain.FirstLabel(host), "-", " "))
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	return strings.Join(words, " ")
}

func stringField(fields map[string]any, key string) string {
	value, ok := fields[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
