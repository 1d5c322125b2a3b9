// Package config loads VisiProbe configuration with viper. Defaults are set in
// code, an optional YAML file overrides them, and environment variables with
// the VISIPROBE_ prefix override both.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/visiprobe/visiprobe/internal/ailink"
	"github.com/visiprobe/visiprobe/internal/appid"
	"github.com/visiprobe/visiprobe/internal/core"
	"github.com/visiprobe/visiprobe/internal/core/scoring"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec maps an environment variable to a config path.
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Options control a Load call.
type Options struct {
	// ConfigFile is read instead of searching the default locations. A
	// missing explicit file is an error.
	ConfigFile string

	// Viper receives the merged settings; a fresh instance is used when nil.
	Viper *viper.Viper

	// Overrides are applied last, as nested maps keyed like the YAML file.
	Overrides []map[string]any
}

// Load builds the configuration from defaults, the config file, the
// environment and opts.Overrides, in increasing precedence.
func Load(opts Options) (*Config, error) {
	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	if len(envOverrides) > 0 {
		if err := v.MergeConfigMap(envOverrides); err != nil {
			return nil, fmt.Errorf("failed to merge environment overrides: %w", err)
		}
	}

	v.SetEnvPrefix(strings.TrimSuffix(appid.Get().EnvPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, override := range opts.Overrides {
		setNested(v, "", override)
	}

	cfg, err := Decode(v.AllSettings())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode converts a settings map into a Config.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range cfg.Scan.Platforms {
		cfg.Scan.Platforms[i].Kind = core.ParsePlatformKind(string(cfg.Scan.Platforms[i].Kind))
	}
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	return cfg, nil
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch strings.ToLower(strings.TrimSpace(c.RateLimit.Backend)) {
	case BackendMemory, BackendRedis, BackendLibsql:
	default:
		errs = append(errs, fmt.Errorf("rate_limit.backend %q must be memory, redis or libsql", c.RateLimit.Backend))
	}
	if c.RateLimit.Enabled && c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("rate_limit.requests must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be positive"))
	}
	if c.RateLimit.Enabled && strings.EqualFold(c.RateLimit.Backend, BackendRedis) && strings.TrimSpace(c.RateLimit.Redis.Addr) == "" {
		errs = append(errs, errors.New("rate_limit.redis.addr is required for the redis backend"))
	}

	if c.Scan.MaxConcurrency < 0 {
		errs = append(errs, errors.New("scan.max_concurrency must not be negative"))
	}
	if c.Scan.ExcerptLength < 0 {
		errs = append(errs, errors.New("scan.excerpt_length must not be negative"))
	}
	seen := make(map[string]struct{}, len(c.Scan.Platforms))
	for i, p := range c.Scan.Platforms {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Model) == "" {
			errs = append(errs, fmt.Errorf("scan.platforms[%d] needs id and model", i))
			continue
		}
		if _, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Errorf("scan.platforms: duplicate id %q", p.ID))
		}
		seen[p.ID] = struct{}{}
	}

	if c.Scoring.MaxScore <= 0 || c.Scoring.MaxScore > scoring.ScoreCeiling {
		errs = append(errs, fmt.Errorf("scoring.max_score must be between 1 and %d", scoring.ScoreCeiling))
	}
	if c.Scoring.FoundThreshold < 0 {
		errs = append(errs, errors.New("scoring.found_threshold must not be negative"))
	}

	return errors.Join(errs...)
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trust_forwarded_for", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")

	// Metrics, health and debug defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("health.enabled", true)
	v.SetDefault("debug.enabled", false)

	// Completion gateway defaults
	v.SetDefault("ailink.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ailink.api_key", "")
	v.SetDefault("ailink.referer", "https://visiprobe.dev")
	v.SetDefault("ailink.title", "VisiProbe")
	v.SetDefault("ailink.max_tokens", ailink.DefaultMaxTokens)
	v.SetDefault("ailink.temperature", ailink.DefaultTemperature)
	v.SetDefault("ailink.default_timeout", ailink.DefaultTimeout.String())
	v.SetDefault("ailink.prompts_dir", "")
	v.SetDefault("ailink.selection_policy", "priority")
	v.SetDefault("ailink.default_credential", "")

	// Scan defaults
	v.SetDefault("scan.platforms", platformDefaults())
	v.SetDefault("scan.discovery_model", core.DefaultDiscoveryModel)
	v.SetDefault("scan.discovery_timeout", "15s")
	v.SetDefault("scan.platform_timeout", "30s")
	v.SetDefault("scan.parallel", false)
	v.SetDefault("scan.max_concurrency", len(core.DefaultPlatforms))
	v.SetDefault("scan.announce_discovery", true)
	v.SetDefault("scan.excerpt_length", 300)

	// Scoring defaults
	w := scoring.DefaultWeights()
	v.SetDefault("scoring.found_threshold", w.FoundThreshold)
	v.SetDefault("scoring.max_score", w.MaxScore)
	v.SetDefault("scoring.name_mentions_high", w.NameMentionsHigh)
	v.SetDefault("scoring.name_mentions_low", w.NameMentionsLow)
	v.SetDefault("scoring.name_mentions_high_min", w.NameMentionsHighMin)
	v.SetDefault("scoring.domain_mention", w.DomainMention)
	v.SetDefault("scoring.factual_claim", w.FactualClaim)
	v.SetDefault("scoring.factual_claim_max", w.FactualClaimMax)
	v.SetDefault("scoring.detail_signal", w.DetailSignal)
	v.SetDefault("scoring.detail_signal_max", w.DetailSignalMax)
	v.SetDefault("scoring.length_long", w.LengthLong)
	v.SetDefault("scoring.length_medium", w.LengthMedium)
	v.SetDefault("scoring.length_short", w.LengthShort)
	v.SetDefault("scoring.length_long_words", w.LengthLongWords)
	v.SetDefault("scoring.length_medium_words", w.LengthMediumWords)
	v.SetDefault("scoring.length_short_words", w.LengthShortWords)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", BackendMemory)
	v.SetDefault("rate_limit.requests", 3)
	v.SetDefault("rate_limit.window", "1h")
	v.SetDefault("rate_limit.sweep_interval", "10m")
	v.SetDefault("rate_limit.redis.addr", "")
	v.SetDefault("rate_limit.redis.password", "")
	v.SetDefault("rate_limit.redis.db", 0)
	v.SetDefault("rate_limit.redis.prefix", "visiprobe:ratelimit:")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
}

// GetConfig returns the most recently loaded configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

func readConfigFile(v *viper.Viper, path string) error {
	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}

	if dir := gfconfig.GetAppConfigDir(appid.Get().ConfigName); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// getEnvSpecs returns the short environment aliases. Every other key is also
// reachable as VISIPROBE_<SECTION>_<KEY>.
func getEnvSpecs() []EnvVarSpec {
	name := appid.EnvName
	return []EnvVarSpec{
		// Completion gateway
		{Name: "OPENROUTER_API_KEY", Path: []string{"ailink", "api_key"}, Type: EnvString},
		{Name: name("API_KEY"), Path: []string{"ailink", "api_key"}, Type: EnvString},

		// Server config
		{Name: name("HOST"), Path: []string{"server", "host"}, Type: EnvString},
		{Name: name("PORT"), Path: []string{"server", "port"}, Type: EnvInt},

		// Logging config
		{Name: name("LOG_LEVEL"), Path: []string{"logging", "level"}, Type: EnvString},
		{Name: name("LOG_PROFILE"), Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: name("DB_PATH"), Path: []string{"store", "path"}, Type: EnvString},
		{Name: name("DB_URL"), Path: []string{"store", "url"}, Type: EnvString},
		{Name: name("DB_AUTH_TOKEN"), Path: []string{"store", "auth_token"}, Type: EnvString},

		// Rate limit config
		{Name: name("REDIS_ADDR"), Path: []string{"rate_limit", "redis", "addr"}, Type: EnvString},
		{Name: name("REDIS_PASSWORD"), Path: []string{"rate_limit", "redis", "password"}, Type: EnvString},

		// Scan config
		{Name: name("PARALLEL"), Path: []string{"scan", "parallel"}, Type: EnvBool},
	}
}

func setNested(v *viper.Viper, prefix string, values map[string]any) {
	for key, value := range values {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			setNested(v, path, nested)
			continue
		}
		v.Set(path, value)
	}
}

func platformDefaults() []map[string]any {
	out := make([]map[string]any, 0, len(core.DefaultPlatforms))
	for _, p := range core.DefaultPlatforms {
		out = append(out, map[string]any{
			"id":           p.ID,
			"display_name": p.DisplayName,
			"model":        p.Model,
			"kind":         string(p.Kind),
		})
	}
	return out
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	dir := gfconfig.GetAppConfigDir(appid.Get().ConfigName)
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	identity := appid.Get()
	dataDir := gfconfig.GetAppDataDir(identity.ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + identity.BinaryName + ".db"
	}
	return filepath.Join(dataDir, identity.BinaryName+".db")
}

// RateLimitWindow returns the configured window, defaulting to one hour.
func (c *Config) RateLimitWindow() time.Duration {
	if c == nil || c.RateLimit.Window <= 0 {
		return time.Hour
	}
	return c.RateLimit.Window
}
