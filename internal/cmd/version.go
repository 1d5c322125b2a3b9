package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/visiprobe/visiprobe/internal/output"
)

var (
	versionExtended bool
	versionFormat   string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the binary version. --extended adds build, Go, Gofulmen and Crucible details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(versionFormat)
		if err != nil {
			return err
		}
		return writeVersion(cmd.OutOrStdout(), format, versionExtended)
	},
}

type versionReport struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go,omitempty"`
	Gofulmen  string `json:"gofulmen,omitempty"`
	Crucible  string `json:"crucible,omitempty"`
}

func buildVersionReport(extended bool) versionReport {
	report := versionReport{Name: GetAppIdentity().BinaryName, Version: versionInfo.Version}
	if extended {
		libs := crucible.GetVersion()
		report.Commit = versionInfo.Commit
		report.BuildDate = versionInfo.BuildDate
		report.Go = runtime.Version()
		report.Gofulmen = libs.Gofulmen
		report.Crucible = libs.Crucible
	}
	return report
}

func writeVersion(w io.Writer, format output.Format, extended bool) error {
	report := buildVersionReport(extended)
	if format == output.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if !extended {
		_, err := fmt.Fprintf(w, "%s %s\n", report.Name, report.Version)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(report.Name + " " + report.Version)
	t.AppendRows([]table.Row{
		{"Commit", report.Commit},
		{"Built", report.BuildDate},
		{"Go", report.Go},
		{"Gofulmen", report.Gofulmen},
		{"Crucible", report.Crucible},
	})
	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionExtended, "extended", "e", false, "show build and library versions")
	versionCmd.Flags().StringVar(&versionFormat, "output-format", "table", "output format: table or json")
}
