package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/visiprobe/visiprobe/internal/core"
)

// Memory keeps rate-limit windows in process memory. State is lost on restart.
type Memory struct {
	Clock func() time.Time

	mu      sync.Mutex
	entries map[string]core.RateLimitState
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]core.RateLimitState)}
}

func (m *Memory) GetRateLimit(_ context.Context, identity string) (*core.RateLimitState, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, ErrIdentityRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.entries[identity]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (m *Memory) UpdateRateLimit(_ context.Context, identity string, state *core.RateLimitState) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ErrIdentityRequired
	}
	if state == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]core.RateLimitState)
	}
	m.entries[identity] = *state
	return nil
}

func (m *Memory) ListRateLimits(_ context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	entries := []RateLimitEntry{}
	for identity, state := range m.entries {
		if q.Matches(identity) {
			entries = append(entries, RateLimitEntry{Identity: identity, State: state})
		}
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Identity < entries[j].Identity })
	return entries, nil
}

func (m *Memory) ResetRateLimits(_ context.Context, q RateLimitQuery) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for identity := range m.entries {
		if q.Matches(identity) {
			delete(m.entries, identity)
			removed++
		}
	}
	return removed, nil
}

// Sweep drops windows that closed before now and returns how many were removed.
func (m *Memory) Sweep(window time.Duration) int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for identity, state := range m.entries {
		if now.After(state.ExpiresAt(window)) {
			delete(m.entries, identity)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx ends.
func (m *Memory) RunSweeper(ctx context.Context, interval, window time.Duration) {
	if interval <= 0 {
		interval = window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(window)
		}
	}
}

// Len returns the number of stored windows.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}
