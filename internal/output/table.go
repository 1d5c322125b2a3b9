package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/visiprobe/visiprobe/internal/core"
)

// TableExcerptWidth bounds the excerpt column.
const TableExcerptWidth = 60

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatScan renders a finished scan as a table.
func (f *TableFormatter) FormatScan(result *core.Complete) (string, error) {
	if result == nil {
		return "", nil
	}

	t := table.NewWriter()
	style := table.StyleRounded
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	t.SetTitle(result.Domain)
	t.AppendHeader(table.Row{"Platform", "Status", "Visibility", "Competitors", "Excerpt"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, WidthMax: TableExcerptWidth},
	})

	for _, r := range result.Results {
		excerpt := r.Excerpt
		if r.Status == core.ScanStatusError {
			excerpt = r.Error
		}
		t.AppendRow(table.Row{
			r.PlatformName,
			resultLabel(r),
			r.Visibility,
			competitorList(r),
			truncate(excerpt, TableExcerptWidth*3),
		})
	}

	t.AppendFooter(table.Row{"", summaryLine(result), "", "", ""})
	return t.Render(), nil
}
