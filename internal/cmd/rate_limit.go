package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/core/store"
	"github.com/visiprobe/visiprobe/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and clear shared scan quotas (redis or libsql backend)",
}

// outputFlags are the --output-format/--out/--out-dir trio shared by the
// rate-limit subcommands.
type outputFlags struct {
	format string
	out    string
	outDir string
}

func (f *outputFlags) register(cmd *cobra.Command, formats string) {
	cmd.Flags().StringVar(&f.format, "output-format", string(output.FormatTable), "Output format: "+formats)
	cmd.Flags().StringVar(&f.out, "out", "", "Write output to a file (default stdout)")
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "Write output to a directory")
}

// adminSession opens the configured shared backend and the output sink, runs
// fn, then closes both.
func adminSession(cmd *cobra.Command, flags outputFlags, name string, allowed []output.Format,
	fn func(cfg *config.Config, admin store.RateLimitAdmin, format output.Format, w io.Writer) error,
) error {
	format, err := output.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	supported := false
	for _, f := range allowed {
		supported = supported || f == format
	}
	if !supported {
		return fmt.Errorf("unsupported output format: %s", format)
	}

	cfg, err := loadedConfig()
	if err != nil {
		return err
	}
	backend, err := openRateLimitAdmin(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer backend.Close() // nolint:errcheck // best-effort cleanup

	path, err := resolveOutPath(flags.out, flags.outDir, name, format)
	if err != nil {
		return err
	}
	sink, err := openSink(cmd.OutOrStdout(), path)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	return fn(cfg, backend.Admin, format, sink)
}

var (
	listFlags  outputFlags
	listAll    bool
	listPrefix string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scan quota windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := store.RateLimitQuery{All: listAll, Prefix: strings.TrimSpace(listPrefix)}
		if query.Prefix == "" {
			query.All = true
		}
		formats := []output.Format{output.FormatTable, output.FormatJSON, output.FormatNDJSON}
		return adminSession(cmd, listFlags, "rate-limit.list", formats,
			func(cfg *config.Config, admin store.RateLimitAdmin, format output.Format, w io.Writer) error {
				entries, err := admin.ListRateLimits(cmd.Context(), query)
				if err != nil {
					return err
				}
				return writeRateLimitList(w, format, entries, cfg.RateLimitWindow())
			})
	},
}

type rateLimitRow struct {
	Identity     string    `json:"identity"`
	RequestCount int       `json:"request_count"`
	WindowStart  time.Time `json:"window_start"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func writeRateLimitList(w io.Writer, format output.Format, entries []store.RateLimitEntry, window time.Duration) error {
	rows := make([]rateLimitRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, rateLimitRow{
			Identity:     entry.Identity,
			RequestCount: entry.State.RequestCount,
			WindowStart:  entry.State.WindowStart.UTC(),
			ExpiresAt:    entry.State.ExpiresAt(window).UTC(),
		})
	}

	switch format {
	case output.FormatJSON:
		return writeIndented(w, rows)
	case output.FormatNDJSON:
		enc := json.NewEncoder(w)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	lines := []string{"Scan Quotas", ""}
	if len(rows) == 0 {
		lines = append(lines, "(no stored rate limit state)")
	}
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s: count=%d resets_at=%s", row.Identity, row.RequestCount, row.ExpiresAt.Format(time.RFC3339)))
	}
	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

var (
	resetFlags    outputFlags
	resetAll      bool
	resetIdentity string
	resetPrefix   string
	resetYes      bool
	resetDryRun   bool
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear stored scan quota windows",
	Example: `  visiprobe rate-limit reset --identity 203.0.113.9
  visiprobe rate-limit reset --prefix 10.0. --dry-run
  visiprobe rate-limit reset --all --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := store.RateLimitQuery{
			All:      resetAll,
			Identity: strings.TrimSpace(resetIdentity),
			Prefix:   strings.TrimSpace(resetPrefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !resetYes && !resetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		formats := []output.Format{output.FormatTable, output.FormatJSON}
		return adminSession(cmd, resetFlags, "rate-limit.reset", formats,
			func(_ *config.Config, admin store.RateLimitAdmin, format output.Format, w io.Writer) error {
				result, err := resetRateLimits(cmd, admin, query, resetDryRun)
				if err != nil {
					return err
				}
				return writeRateLimitResetResult(format, w, result)
			})
	},
}

type rateLimitResetResult struct {
	Matched int   `json:"matched"`
	Deleted int64 `json:"deleted"`
	DryRun  bool  `json:"dry_run"`
}

// resetRateLimits counts the matching windows first so a dry run and a real
// reset report the same Matched figure.
func resetRateLimits(cmd *cobra.Command, admin store.RateLimitAdmin, query store.RateLimitQuery, dryRun bool) (rateLimitResetResult, error) {
	matched, err := admin.ListRateLimits(cmd.Context(), query)
	if err != nil {
		return rateLimitResetResult{}, err
	}
	result := rateLimitResetResult{Matched: len(matched), DryRun: dryRun}
	if dryRun {
		return result, nil
	}
	result.Deleted, err = admin.ResetRateLimits(cmd.Context(), query)
	return result, err
}

func writeRateLimitResetResult(format output.Format, w io.Writer, result rateLimitResetResult) error {
	if format == output.FormatJSON {
		return writeIndented(w, result)
	}
	var err error
	if result.DryRun {
		_, err = fmt.Fprintf(w, "Would delete %d rate limit entr(ies)\n", result.Matched)
	} else {
		_, err = fmt.Fprintf(w, "Deleted %d/%d rate limit entr(ies)\n", result.Deleted, result.Matched)
	}
	return err
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	listFlags.register(rateLimitListCmd, "table|json|ndjson")
	rateLimitListCmd.Flags().BoolVar(&listAll, "all", false, "List every identity (default when --prefix is unset)")
	rateLimitListCmd.Flags().StringVar(&listPrefix, "prefix", "", "Only identities with this prefix")

	resetFlags.register(rateLimitResetCmd, "table|json")
	rateLimitResetCmd.Flags().BoolVar(&resetAll, "all", false, "Reset every identity")
	rateLimitResetCmd.Flags().StringVar(&resetIdentity, "identity", "", "Reset a single identity (exact match)")
	rateLimitResetCmd.Flags().StringVar(&resetPrefix, "prefix", "", "Reset identities with matching prefix")
	rateLimitResetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&resetDryRun, "dry-run", false, "Show what would be deleted")

	rateLimitCmd.AddCommand(rateLimitListCmd, rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
