package ailink

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/visiprobe/visiprobe/internal/ailink/driver"
	"github.com/visiprobe/visiprobe/internal/ailink/driver/openrouter"
)

// Registry picks a credential for each completion and keeps one driver per
// credential so connection reuse survives across scans.
type Registry struct {
	cfg Config

	// HTTPClient is handed to every driver the registry builds.
	HTTPClient *http.Client

	mu      sync.Mutex
	drivers map[string]driver.Driver
	turns   map[int]int
}

// ResolvedDriver is the driver chosen for one call.
type ResolvedDriver struct {
	Driver          driver.Driver
	CredentialLabel string
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg}
}

// Resolve picks a usable credential and returns its driver.
func (r *Registry) Resolve() (*ResolvedDriver, error) {
	if r == nil {
		return nil, errors.New("ailink registry not configured")
	}
	cred, label, err := r.pick()
	if err != nil {
		return nil, err
	}
	return &ResolvedDriver{Driver: r.driverFor(cred, label), CredentialLabel: label}, nil
}

// pick applies, in order: the named default credential, then the highest
// priority group, rotated when the policy is round_robin.
func (r *Registry) pick() (CredentialConfig, string, error) {
	all := r.cfg.AllCredentials()
	if len(all) == 0 {
		return CredentialConfig{}, "", ErrNoCredential
	}
	usable := usableCredentials(all)
	if len(usable) == 0 {
		return CredentialConfig{}, "", r.cfg.CredentialStatus()
	}

	if want := strings.TrimSpace(r.cfg.DefaultCredential); want != "" {
		for _, cred := range usable {
			if strings.EqualFold(strings.TrimSpace(cred.Label), want) {
				return cred, strings.TrimSpace(cred.Label), nil
			}
		}
	}

	priority, group := topPriority(usable)
	idx := 0
	if strings.EqualFold(strings.TrimSpace(r.cfg.SelectionPolicy), "round_robin") {
		idx = r.nextTurn(priority, len(group))
	}

	cred := group[idx]
	label := strings.TrimSpace(cred.Label)
	if label == "" {
		label = "p" + strconv.Itoa(priority) + "-" + strconv.Itoa(idx)
	}
	return cred, label, nil
}

func usableCredentials(all []CredentialConfig) []CredentialConfig {
	usable := make([]CredentialConfig, 0, len(all))
	for _, cred := range all {
		if cred.Enabled && !IsPlaceholderKey(cred.APIKey) {
			usable = append(usable, cred)
		}
	}
	return usable
}

// topPriority returns the highest priority and the credentials that share it,
// in configured order.
func topPriority(creds []CredentialConfig) (int, []CredentialConfig) {
	highest := creds[0].Priority
	var group []CredentialConfig
	for _, cred := range creds {
		switch {
		case cred.Priority > highest:
			highest = cred.Priority
			group = []CredentialConfig{cred}
		case cred.Priority == highest:
			group = append(group, cred)
		}
	}
	return highest, group
}

func (r *Registry) nextTurn(priority, n int) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.turns == nil {
		r.turns = map[int]int{}
	}
	idx := r.turns[priority] % n
	r.turns[priority]++
	return idx
}

func (r *Registry) driverFor(cred CredentialConfig, label string) driver.Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	if drv, ok := r.drivers[label]; ok {
		return drv
	}
	if r.drivers == nil {
		r.drivers = map[string]driver.Driver{}
	}

	client := openrouter.NewClient(r.cfg.BaseURL, cred.APIKey)
	client.Referer = r.cfg.Referer
	client.Title = r.cfg.Title
	client.HTTPClient = r.HTTPClient
	r.drivers[label] = client
	return client
}
