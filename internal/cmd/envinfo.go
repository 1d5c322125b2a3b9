package cmd

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display build, runtime, scan and rate limit settings as resolved from config, environment and flags.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadedConfig()
		if err != nil && observability.CLILogger != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
		}
		return writeEnvInfo(cmd.OutOrStdout(), cfg)
	},
}

// writeEnvInfo renders one table section per concern. A nil cfg prints only
// the build and runtime sections.
func writeEnvInfo(w io.Writer, cfg *config.Config) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(GetAppIdentity().BinaryName + " environment")

	section := func(name string, rows ...table.Row) {
		t.AppendSeparator()
		t.AppendRow(table.Row{strings.ToUpper(name), ""})
		t.AppendRows(rows)
	}

	lib := crucible.GetVersion()
	section("build",
		table.Row{"Version", versionInfo.Version},
		table.Row{"Commit", versionInfo.Commit},
		table.Row{"Built", versionInfo.BuildDate},
		table.Row{"Gofulmen", lib.Gofulmen},
		table.Row{"Crucible", lib.Crucible},
	)
	section("runtime",
		table.Row{"Go", runtime.Version()},
		table.Row{"Platform", runtime.GOOS + "/" + runtime.GOARCH},
		table.Row{"CPUs", runtime.NumCPU()},
	)

	if cfg == nil {
		t.Render()
		return nil
	}

	section("server",
		table.Row{"Listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)},
		table.Row{"Trust X-Forwarded-For", cfg.Server.TrustForwardedFor},
		table.Row{"Log level", cfg.Logging.Level},
		table.Row{"Metrics port", cfg.Metrics.Port},
		table.Row{"Config file", config.DefaultConfigPath()},
	)

	credential := "configured"
	if err := cfg.AILink.CredentialStatus(); err != nil {
		credential = err.Error()
	}
	gateway := []table.Row{
		{"Base URL", cfg.AILink.BaseURL},
		{"Timeout", cfg.AILink.DefaultTimeout.String()},
		{"Credential", credential},
	}
	if dir := strings.TrimSpace(cfg.AILink.PromptsDir); dir != "" {
		gateway = append(gateway, table.Row{"Prompts dir", dir})
	}
	section("completion gateway", gateway...)

	scan := []table.Row{
		{"Discovery model", cfg.Scan.DiscoveryModel},
		{"Platform timeout", cfg.Scan.PlatformTimeout.String()},
		{"Parallel", cfg.Scan.Parallel},
	}
	for _, p := range cfg.Scan.Platforms {
		scan = append(scan, table.Row{p.DisplayName, fmt.Sprintf("%s [%s]", p.Model, p.Kind)})
	}
	section("scan", scan...)

	limits := []table.Row{
		{"Enabled", cfg.RateLimit.Enabled},
		{"Backend", cfg.RateLimit.Backend},
		{"Quota", fmt.Sprintf("%d per %s", cfg.RateLimit.Requests, cfg.RateLimitWindow())},
	}
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		limits = append(limits, table.Row{"Redis", cfg.RateLimit.Redis.Addr})
	case config.BackendLibsql:
		limits = append(limits, table.Row{"Store", storeLocation(cfg.Store)})
	}
	section("rate limit", limits...)

	t.Render()
	return nil
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
