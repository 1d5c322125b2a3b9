package output

import (
	"fmt"
	"strings"

	"github.com/visiprobe/visiprobe/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatScan renders a finished scan as Markdown.
func (f *MarkdownFormatter) FormatScan(result *core.Complete) (string, error) {
	if result == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## AI visibility for %s\n\n", escapeMarkdownCell(result.Domain)))
	sb.WriteString("| Platform | Status | Visibility | Competitors |\n")
	sb.WriteString("|----------|--------|------------|-------------|\n")

	for _, r := range result.Results {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d%% | %s |\n",
			escapeMarkdownCell(r.PlatformName),
			escapeMarkdownCell(resultLabel(r)),
			r.Visibility,
			escapeMarkdownCell(competitorList(r)),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Score**: %s\n", summaryLine(result)))

	for _, r := range result.Results {
		if r.Excerpt == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n### %s\n\n> %s\n", r.PlatformName, r.Excerpt))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
