package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/visiprobe/visiprobe/internal/ailink/prompt"
	"github.com/visiprobe/visiprobe/internal/core"
)

type fakeProvider struct {
	reply   string
	err     error
	model   string
	prompt  string
	timeout time.Duration
}

func (f *fakeProvider) Complete(_ context.Context, model, text string, timeout time.Duration) (string, error) {
	f.model = model
	f.prompt = text
	f.timeout = timeout
	return f.reply, f.err
}

func newDiscoverer(t *testing.T, provider *fakeProvider) (*Discoverer, *observer.ObservedLogs) {
	t.Helper()
	prompts, err := prompt.DefaultRegistry()
	require.NoError(t, err)
	observed, logs := observer.New(zap.DebugLevel)
	return New(provider, prompts, zap.New(observed)), logs
}

func TestDiscoverParsesFencedJSON(t *testing.T) {
	provider := &fakeProvider{reply: "```json\n{\"name\":\"Acme Plumbing Co\",\"type\":\"plumber\",\"location\":\"Austin, TX\",\"description\":\"Residential plumbing\"}\n```"}
	d, _ := newDiscoverer(t, provider)

	profile := d.Discover(context.Background(), "acmeplumbing.com")
	require.Equal(t, core.BusinessProfile{
		Name:        "Acme Plumbing Co",
		Type:        "plumber",
		Location:    "Austin, TX",
		Description: "Residential plumbing",
	}, profile)

	require.Equal(t, core.DefaultDiscoveryModel, provider.model)
	require.Equal(t, 15*time.Second, provider.timeout)
	require.Contains(t, provider.prompt, `"acmeplumbing.com"`)
}

func TestDiscoverProviderFailureFallsBack(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	d, logs := newDiscoverer(t, provider)

	profile := d.Discover(context.Background(), "acme-plumbing.com")
	require.Equal(t, core.BusinessProfile{
		Name:        "Acme Plumbing",
		Type:        "business",
		Location:    "unknown",
		Description: "General business services",
	}, profile)
	require.Equal(t, 1, logs.FilterMessage("business discovery degraded").Len())
}

func TestDiscoverUnparsableFallsBack(t *testing.T) {
	d, logs := newDiscoverer(t, &fakeProvider{reply: "I think it is a plumber."})

	profile := d.Discover(context.Background(), "joes-pipes.net")
	require.Equal(t, Fallback("joes-pipes.net"), profile)
	require.Equal(t, 1, logs.FilterMessage("business discovery degraded").Len())
}

func TestDiscoverWithoutProvider(t *testing.T) {
	var d *Discoverer
	require.Equal(t, Fallback("acme.com"), d.Discover(context.Background(), "acme.com"))
}

func TestParseProfilePerFieldFallback(t *testing.T) {
	profile, err := ParseProfile(`Sure! {"name": "  ", "type": "bakery", "location": 42}`, "sweet-treats.co")
	require.NoError(t, err)
	require.Equal(t, core.BusinessProfile{
		Name:        "Sweet Treats",
		Type:        "bakery",
		Location:    "unknown",
		Description: "General business services",
	}, profile)
}

func TestParseProfileGreedyBraces(t *testing.T) {
	raw := `Here: {"name":"A {B} C","type":"shop"} trailing text`
	profile, err := ParseProfile(raw, "abc.com")
	require.NoError(t, err)
	require.Equal(t, "A {B} C", profile.Name)
}

func TestParseProfileErrors(t *testing.T) {
	_, err := ParseProfile("no braces", "x.com")
	require.ErrorIs(t, err, ErrNoJSON)

	profile, err := ParseProfile("{not json}", "x.com")
	require.Error(t, err)
	require.Equal(t, Fallback("x.com"), profile)
}

func TestNameFromDomain(t *testing.T) {
	require.Equal(t, "Acme Plumbing", NameFromDomain("acme-plumbing.com"))
	require.Equal(t, "Example", NameFromDomain("example.co.uk"))
	require.Equal(t, "Joe S", NameFromDomain("joe--s.com"))
}
