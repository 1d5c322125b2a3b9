package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/ailink/driver"
	"github.com/visiprobe/visiprobe/internal/appid"
	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string

	// appConfig is loaded once per invocation by initConfig
	appConfig *config.Config

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the application identity
func GetAppIdentity() appid.Identity {
	return appid.Get()
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   appid.Get().BinaryName,
	Short: appid.Get().Description,
	Long: fmt.Sprintf(`%s - %s

Scan a business website to see which AI assistants know about it:
  %s scan acmeplumbing.com

Or serve the streaming scan API:
  %s serve`, appid.Get().BinaryName, appid.Get().Description, appid.Get().BinaryName, appid.Get().BinaryName),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early so config loading does not emit to
	// stdout. Server mode initializes the exporter later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", appid.Get().ConfigName))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "trace completion requests/responses to NDJSON file")
}

// initConfig loads configuration and the CLI logger before any command runs.
func initConfig() {
	identity := GetAppIdentity()
	observability.InitCLILogger(identity.BinaryName, verbose)

	if traceFile != "" {
		if _, err := driver.EnableTracing(traceFile); err != nil {
			observability.CLILogger.Warn("Failed to enable tracing", zap.Error(err))
		} else {
			// the trace file stays open for the whole process
			observability.CLILogger.Debug("Completion tracing enabled", zap.String("file", traceFile))
		}
	}

	var overrides []map[string]any
	if verbose {
		overrides = append(overrides, map[string]any{"logging": map[string]any{"level": "debug"}})
	}

	cfg, err := config.Load(config.Options{ConfigFile: cfgFile, Overrides: overrides})
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
	}
	appConfig = cfg
}

// loadedConfig returns the configuration loaded by initConfig.
func loadedConfig() (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	cfg, err := config.Load(config.Options{ConfigFile: cfgFile})
	if err != nil {
		return nil, err
	}
	appConfig = cfg
	return cfg, nil
}
