package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/visiprobe/visiprobe/internal/appid"
)

var (
	// CLILogger backs command output (gofulmen SIMPLE profile).
	CLILogger *logging.Logger

	// ServerLogger backs the HTTP layer (gofulmen STRUCTURED profile, JSON on stderr).
	ServerLogger *logging.Logger
)

type level struct {
	severity string
	zap      zapcore.Level
}

var levels = map[string]level{
	"trace":   {"TRACE", zapcore.DebugLevel},
	"debug":   {"DEBUG", zapcore.DebugLevel},
	"info":    {"INFO", zapcore.InfoLevel},
	"warn":    {"WARN", zapcore.WarnLevel},
	"warning": {"WARN", zapcore.WarnLevel},
	"error":   {"ERROR", zapcore.ErrorLevel},
}

// lookupLevel maps a configured level name onto both logger families.
// Unknown names mean info.
func lookupLevel(name string) level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return l
	}
	return levels["info"]
}

func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatal("initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger builds the structured server logger. namespace, when
// given, is stamped on every entry.
func InitServerLogger(serviceName, logLevel string, namespace ...string) {
	static := map[string]any{}
	if len(namespace) > 0 && namespace[0] != "" {
		static["namespace"] = namespace[0]
	}

	logger, err := logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: lookupLevel(logLevel).severity,
		Service:      serviceName,
		Environment:  deployEnvironment(),
		StaticFields: static,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{{
			Type:    "console",
			Format:  "json",
			Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
		}},
		EnableCaller:     true,
		EnableStacktrace: true,
	})
	if err != nil {
		fatal("initialize server logger", err)
	}
	ServerLogger = logger
}

// NewComponentLogger builds the zap logger handed to scan components. Servers
// get JSON; the CLI gets a colored console encoder. Both write to stderr so
// scan reports on stdout stay clean.
func NewComponentLogger(serviceName, logLevel string, jsonOutput bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if !jsonOutput {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lookupLevel(logLevel).zap)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build component logger: %w", err)
	}
	return logger.With(zap.String("service", serviceName)), nil
}

func deployEnvironment() string {
	if env := strings.TrimSpace(os.Getenv(appid.EnvName("ENV"))); env != "" {
		return env
	}
	return "production"
}

// fatal exits with the config-invalid code before any logger exists.
func fatal(action string, err error) {
	code := int(foundry.ExitConfigInvalid)
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", action, err)
	if info, ok := foundry.GetExitCodeInfo(foundry.ExitConfigInvalid); ok {
		fmt.Fprintf(os.Stderr, "Exit code %d (%s): %s\n", info.Code, info.Name, info.Description)
		code = info.Code
	}
	os.Exit(code)
}
