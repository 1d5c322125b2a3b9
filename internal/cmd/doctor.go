package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/ailink/prompt"
	"github.com/visiprobe/visiprobe/internal/appid"
	"github.com/visiprobe/visiprobe/internal/config"
	"github.com/visiprobe/visiprobe/internal/observability"
)

type checkStatus string

const (
	checkOK   checkStatus = "ok"
	checkWarn checkStatus = "warn"
	checkFail checkStatus = "fail"
)

// doctorCheck is one diagnostic line.
type doctorCheck struct {
	Name   string
	Status checkStatus
	Detail string
}

func (c doctorCheck) icon() string {
	switch c.Status {
	case checkOK:
		return "✅"
	case checkWarn:
		return "⚠️ "
	default:
		return "❌"
	}
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the installation, credentials and rate limit backend.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cfgErr := loadedConfig()
		checks := runDoctorChecks(cmd.Context(), cfg, cfgErr)

		logger := observability.CLILogger
		logger.Info("=== " + GetAppIdentity().BinaryName + " doctor ===")
		logger.Info("")

		healthy := true
		for i, check := range checks {
			line := fmt.Sprintf("[%d/%d] %s... %s %s", i+1, len(checks), check.Name, check.icon(), check.Detail)
			switch check.Status {
			case checkOK:
				logger.Info(line, zap.String("check", check.Name))
			case checkWarn:
				logger.Warn(line, zap.String("check", check.Name))
			default:
				healthy = false
				logger.Error(line, zap.String("check", check.Name))
			}
		}

		logger.Info("")
		if healthy {
			logger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", GetAppIdentity().BinaryName))
		} else {
			logger.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		return nil
	},
}

// runDoctorChecks evaluates the installation. cfg may be nil when cfgErr is set.
func runDoctorChecks(ctx context.Context, cfg *config.Config, cfgErr error) []doctorCheck {
	var checks []doctorCheck

	checks = append(checks, doctorCheck{Name: "Checking Go version", Status: checkOK, Detail: runtime.Version()})

	version := crucible.GetVersion()
	if version.Gofulmen != "" && version.Crucible != "" {
		checks = append(checks, doctorCheck{Name: "Checking Gofulmen/Crucible", Status: checkOK,
			Detail: fmt.Sprintf("gofulmen v%s, crucible v%s", version.Gofulmen, version.Crucible)})
	} else {
		checks = append(checks, doctorCheck{Name: "Checking Gofulmen/Crucible", Status: checkFail, Detail: "version metadata unavailable"})
	}

	if cfgErr != nil || cfg == nil {
		detail := "not loaded"
		if cfgErr != nil {
			detail = cfgErr.Error()
		}
		return append(checks, doctorCheck{Name: "Checking configuration", Status: checkFail, Detail: detail})
	}

	configPath := config.DefaultConfigPath()
	if fileExists(configPath) {
		checks = append(checks, doctorCheck{Name: "Checking configuration", Status: checkOK, Detail: configPath})
	} else {
		checks = append(checks, doctorCheck{Name: "Checking configuration", Status: checkOK, Detail: "defaults (no config file)"})
	}

	if err := cfg.AILink.CredentialStatus(); err != nil {
		checks = append(checks, doctorCheck{Name: "Checking completion credential", Status: checkFail,
			Detail: fmt.Sprintf("%v (set OPENROUTER_API_KEY or run '%s doctor init --api-key prompt')", err, GetAppIdentity().BinaryName)})
	} else {
		checks = append(checks, doctorCheck{Name: "Checking completion credential", Status: checkOK, Detail: "configured"})
	}

	if registry, err := prompt.NewRegistryWithOverrides(cfg.AILink.PromptsDir); err != nil {
		checks = append(checks, doctorCheck{Name: "Checking prompts", Status: checkFail, Detail: err.Error()})
	} else {
		checks = append(checks, doctorCheck{Name: "Checking prompts", Status: checkOK, Detail: fmt.Sprintf("%d loaded", len(registry.List()))})
	}

	if len(cfg.Scan.Platforms) == 0 {
		checks = append(checks, doctorCheck{Name: "Checking platforms", Status: checkFail, Detail: "none configured"})
	} else {
		checks = append(checks, doctorCheck{Name: "Checking platforms", Status: checkOK, Detail: fmt.Sprintf("%d configured", len(cfg.Scan.Platforms))})
	}

	return append(checks, rateLimitBackendCheck(ctx, cfg))
}

func rateLimitBackendCheck(ctx context.Context, cfg *config.Config) doctorCheck {
	name := "Checking rate limit backend"
	if !cfg.RateLimit.Enabled {
		return doctorCheck{Name: name, Status: checkOK, Detail: "disabled"}
	}
	if cfg.RateLimit.Backend == config.BackendMemory || cfg.RateLimit.Backend == "" {
		return doctorCheck{Name: name, Status: checkOK, Detail: "memory (per process)"}
	}

	backend, err := openRateLimitAdmin(ctx, cfg)
	if err != nil {
		return doctorCheck{Name: name, Status: checkFail, Detail: fmt.Sprintf("%s: %v", cfg.RateLimit.Backend, err)}
	}
	defer backend.Close() // nolint:errcheck // best-effort cleanup

	if backend.Health != nil {
		if err := backend.Health.CheckHealth(ctx); err != nil {
			return doctorCheck{Name: name, Status: checkFail, Detail: fmt.Sprintf("%s: %v", cfg.RateLimit.Backend, err)}
		}
	}

	detail := cfg.RateLimit.Backend
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		detail += " " + cfg.RateLimit.Redis.Addr
	case config.BackendLibsql:
		detail += " " + storeLocation(cfg.Store)
	}
	return doctorCheck{Name: name, Status: checkOK, Detail: detail}
}

func storeLocation(st config.StoreConfig) string {
	if strings.TrimSpace(st.URL) != "" {
		return st.URL + " (remote)"
	}
	path := st.Path
	if path == "" {
		path = config.DefaultStorePath()
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

var (
	doctorInitForce   bool
	doctorInitAPIKey  string
	doctorResetConfig bool
	doctorResetData   bool
	doctorResetAll    bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		apiKey := strings.TrimSpace(doctorInitAPIKey)
		if strings.EqualFold(apiKey, "prompt") {
			key, err := promptForValue(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter OpenRouter API key (leave blank to skip): ")
			if err != nil {
				return err
			}
			apiKey = key
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		mode := os.FileMode(0644)
		if apiKey != "" {
			mode = 0600
		}

		if err := os.WriteFile(configPath, []byte(buildInitConfig(apiKey)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.CLILogger
		configPath := config.DefaultConfigPath()

		logger.Info("Configuration:")
		logger.Info(fmt.Sprintf("  Config file:   %s (%s)", configPath, existenceStatus(fileExists(configPath))))

		cfg, err := loadedConfig()
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return nil
		}

		logger.Info(fmt.Sprintf("  Database:      %s", storeLocation(cfg.Store)))
		logger.Info("")
		logger.Info("Environment:")
		for _, name := range []string{"OPENROUTER_API_KEY", appid.EnvName("AILINK_API_KEY"), appid.EnvName("API_KEY")} {
			logger.Info(fmt.Sprintf("  %s: %s", name, envStatus(name)))
		}

		logger.Info("")
		logger.Info("Effective Settings:")
		logger.Info(fmt.Sprintf("  scan.parallel: %t", cfg.Scan.Parallel))
		logger.Info(fmt.Sprintf("  scan.platforms: %d", len(cfg.Scan.Platforms)))
		logger.Info(fmt.Sprintf("  rate_limit.enabled: %t", cfg.RateLimit.Enabled))
		logger.Info(fmt.Sprintf("  rate_limit.backend: %s", cfg.RateLimit.Backend))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := removeIfExists(configPath); err != nil {
				return fmt.Errorf("remove config file: %w", err)
			} else {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			}
		}

		if doctorResetData {
			cfg, err := loadedConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}

			path := storeLocation(cfg.Store)
			if err := removeIfExists(path); err != nil {
				return fmt.Errorf("remove database: %w", err)
			}
			observability.CLILogger.Info("Database removed", zap.String("path", path))
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a config file (default: the user config)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("config path not resolved")
		}
		if !fileExists(path) {
			return fmt.Errorf("config file not found: %s", path)
		}

		if _, err := config.Load(config.Options{ConfigFile: path}); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitAPIKey, "api-key", "", "set the OpenRouter api key or use 'prompt' to enter")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

func buildInitConfig(apiKey string) string {
	identity := GetAppIdentity()
	lines := []string{
		fmt.Sprintf("# %s config - created by '%s doctor init'", identity.BinaryName, identity.BinaryName),
		"ailink:",
		"  base_url: https://openrouter.ai/api/v1",
	}

	if apiKey != "" {
		lines = append(lines, fmt.Sprintf("  api_key: %q", apiKey))
	} else {
		lines = append(lines, "  # api_key: \"\"  # or set OPENROUTER_API_KEY")
	}

	lines = append(lines,
		"scan:",
		"  parallel: false",
		"  announce_discovery: true",
		"rate_limit:",
		"  enabled: true",
		"  backend: memory",
		"  requests: 3",
		"  window: 1h",
	)

	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(in io.Reader, out io.Writer, label string) (string, error) {
	if _, err := fmt.Fprint(out, label); err != nil {
		return "", err
	}
	value, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
