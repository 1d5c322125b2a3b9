// Package output renders scan results for the CLI.
package output

import (
	"fmt"
	"strings"

	"github.com/visiprobe/visiprobe/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatNDJSON   Format = "ndjson"
	FormatMarkdown Format = "markdown"
)

// Formatter renders a finished scan.
type Formatter interface {
	FormatScan(result *core.Complete) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatNDJSON), "jsonl":
		return FormatNDJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format. NDJSON output is
// streamed per event and has no final formatter; it falls back to JSON.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON, FormatNDJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// ProgressLine describes an event for interactive progress output.
func ProgressLine(event core.Event) string {
	switch e := event.(type) {
	case core.Scanning:
		if e.PlatformID == core.DiscoveryPlatformID {
			return e.PlatformName
		}
		return fmt.Sprintf("Asking %s...", e.PlatformName)
	case core.PlatformResult:
		return fmt.Sprintf("  %s: %s", e.PlatformName, resultLabel(e))
	case core.Complete:
		return fmt.Sprintf("Found on %d of %d platforms for %s", e.Score, e.Total, e.Domain)
	default:
		return ""
	}
}

func resultLabel(r core.PlatformResult) string {
	if r.Status == core.ScanStatusError {
		return "unavailable"
	}
	if r.Found {
		return fmt.Sprintf("found (%d%%)", r.Visibility)
	}
	return fmt.Sprintf("not found (%d%%)", r.Visibility)
}

func summaryLine(result *core.Complete) string {
	return fmt.Sprintf("%d/%d platforms know %s", result.Score, result.Total, result.Domain)
}

func competitorList(r core.PlatformResult) string {
	if len(r.Competitors) == 0 {
		return "-"
	}
	return strings.Join(r.Competitors, ", ")
}

// truncate shortens s to at most limit runes, ending with "...".
func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 3 || len(runes) <= limit {
		return s
	}
	return strings.TrimRight(string(runes[:limit-3]), " ") + "..."
}
