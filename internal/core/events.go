package core

// EventKind tags a scan event on the wire.
type EventKind string

const (
	EventScanning EventKind = "scanning"
	EventResult   EventKind = "result"
	EventComplete EventKind = "complete"
)

// DiscoveryPlatformID marks the progress event emitted before business discovery.
const DiscoveryPlatformID = "discovery"

// DiscoveryLabel is the display text for the discovery progress event.
const DiscoveryLabel = "Identifying your business..."

// Event is one externally observable step of a scan.
type Event interface {
	Kind() EventKind
}

// Scanning announces that a platform query is starting.
type Scanning struct {
	PlatformID   string `json:"platformId"`
	PlatformName string `json:"platformName"`
}

// Kind implements Event.
func (Scanning) Kind() EventKind { return EventScanning }

// PlatformResult carries the outcome for one platform.
type PlatformResult struct {
	PlatformID   string     `json:"platformId"`
	PlatformName string     `json:"platformName"`
	Found        bool       `json:"found"`
	Excerpt      string     `json:"excerpt"`
	Competitors  []string   `json:"competitors"`
	Visibility   int        `json:"visibility"`
	Status       ScanStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
}

// Kind implements Event.
func (PlatformResult) Kind() EventKind { return EventResult }

// Complete is the terminal event of a scan.
type Complete struct {
	Score   int              `json:"score"`
	Total   int              `json:"total"`
	Domain  string           `json:"domain"`
	Results []PlatformResult `json:"results"`
}

// Kind implements Event.
func (Complete) Kind() EventKind { return EventComplete }

// NewPlatformResult builds a successful result event from a scored response.
func NewPlatformResult(platform PlatformSpec, result ScanResult) PlatformResult {
	competitors := result.Competitors
	if competitors == nil {
		competitors = []string{}
	}
	return PlatformResult{
		PlatformID:   platform.ID,
		PlatformName: platform.DisplayName,
		Found:        result.Found,
		Excerpt:      result.Excerpt,
		Competitors:  competitors,
		Visibility:   result.Visibility,
		Status:       ScanStatusComplete,
	}
}

// NewPlatformError builds the result event for a platform that could not be checked.
func NewPlatformError(platform PlatformSpec) PlatformResult {
	return PlatformResult{
		PlatformID:   platform.ID,
		PlatformName: platform.DisplayName,
		Found:        false,
		Excerpt:      "",
		Competitors:  []string{},
		Visibility:   0,
		Status:       ScanStatusError,
		Error:        PlatformUnavailableMessage,
	}
}
