package core

import "time"

// RateLimitState captures the fixed-window counter for one caller identity.
type RateLimitState struct {
	RequestCount int
	WindowStart  time.Time
}

// ExpiresAt returns when the window opened at WindowStart closes.
func (s RateLimitState) ExpiresAt(window time.Duration) time.Time {
	return s.WindowStart.Add(window)
}
