package core

import "strings"

// PlatformKind selects the prompt variant sent to a platform.
type PlatformKind string

const (
	PlatformKindStandard PlatformKind = "standard"
	PlatformKindSearch   PlatformKind = "search"
)

// ParsePlatformKind normalizes a configured kind. Unknown values map to standard.
func ParsePlatformKind(value string) PlatformKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(PlatformKindSearch):
		return PlatformKindSearch
	default:
		return PlatformKindStandard
	}
}

// BusinessProfile is the inferred identity of the business behind a domain.
// It lives for a single scan and is never persisted.
type BusinessProfile struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// PlatformSpec describes one AI platform probed during a scan.
type PlatformSpec struct {
	ID          string       `json:"id" mapstructure:"id"`
	DisplayName string       `json:"display_name" mapstructure:"display_name"`
	Model       string       `json:"model" mapstructure:"model"`
	Kind        PlatformKind `json:"kind" mapstructure:"kind"`
}

// ScanStatus reports whether a platform query produced a usable answer.
type ScanStatus string

const (
	ScanStatusComplete ScanStatus = "complete"
	ScanStatusError    ScanStatus = "error"
)

// PlatformUnavailableMessage is the only error text ever surfaced for a failed platform.
const PlatformUnavailableMessage = "Unable to check this platform"

// ScanResult is the scored outcome of one completion response.
type ScanResult struct {
	Found       bool     `json:"found"`
	Visibility  int      `json:"visibility"`
	Excerpt     string   `json:"excerpt"`
	Competitors []string `json:"competitors"`
}
