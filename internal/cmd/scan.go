package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/engine"
	"github.com/visiprobe/visiprobe/internal/observability"
	"github.com/visiprobe/visiprobe/internal/output"
)

// CLIIdentity is the caller identity used for local scans.
const CLIIdentity = "cli"

var (
	scanOutputFormat string
	scanOut          string
	scanParallel     bool
	scanQuiet        bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Check which AI assistants know a business",
	Long: `Scan a business website across the configured AI platforms.

Progress is printed to stderr as each platform answers. The final report is
written to stdout (or --out) as a table, JSON or Markdown. The ndjson format
streams every event as one JSON line instead.

Local scans are not rate limited.`,
	Example: `  visiprobe scan acmeplumbing.com
  visiprobe scan https://www.acmeplumbing.com --output-format json
  visiprobe scan acmeplumbing.com --output-format ndjson --parallel`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("parallel") {
			cfg.Scan.Parallel = scanParallel
		}

		format, err := output.ParseFormat(scanOutputFormat)
		if err != nil {
			return err
		}

		sink, err := openSink(cmd.OutOrStdout(), scanOut)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Close() }()

		progress := cmd.ErrOrStderr()
		if scanQuiet {
			progress = io.Discard
		}

		_, err = runScan(cmd, cfg, args[0], format, sink, progress)
		return err
	},
}

// runScan scans rawURL and writes the report. Events stream to out as NDJSON
// for that format and to progress as text otherwise.
func runScan(cmd *cobra.Command, cfg *config.Config, rawURL string, format output.Format, out, progress io.Writer) (*core.Complete, error) {
	observability.DisableMetrics()

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := observability.NewComponentLogger(GetAppIdentity().BinaryName, level, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()

	orchestrator, err := buildOrchestrator(cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	scanner := &engine.Scanner{
		Credentials:  cfg.AILink,
		Orchestrator: orchestrator,
		Logger:       logger.Named("scanner"),
	}

	emit := func(event core.Event) error {
		if format == output.FormatNDJSON {
			line, err := output.EventLine(event)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%s\n", line)
			return err
		}
		if _, isComplete := event.(core.Complete); isComplete {
			return nil
		}
		if text := output.ProgressLine(event); text != "" {
			_, _ = fmt.Fprintln(progress, text)
		}
		return nil
	}

	complete, err := scanner.StartScan(cmd.Context(), strings.TrimSpace(rawURL), CLIIdentity, emit)
	if err != nil {
		logger.Debug("scan failed", zap.Error(err))
		return nil, err
	}

	if format == output.FormatNDJSON {
		return complete, nil
	}

	rendered, err := output.NewFormatter(format).FormatScan(complete)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintln(out, rendered); err != nil {
		return nil, err
	}
	return complete, nil
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanOutputFormat, "output-format", string(output.FormatTable), "Output format: table|json|ndjson|markdown")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "Write output to a file (default stdout)")
	scanCmd.Flags().BoolVar(&scanParallel, "parallel", false, "Query platforms concurrently (results keep platform order)")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "Suppress progress output")
}
