package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
)

// FileSystem abstracts the file operations the loader needs.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem uses the real file system.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// credentialEnv maps well-known provider credential variables onto settings
// keys.
var credentialEnv = map[string]string{
	"providers.whisper.api_key":    "OPENAI_API_KEY",
	"providers.openai.api_key":     "OPENAI_API_KEY",
	"providers.assemblyai.api_key": "ASSEMBLYAI_API_KEY",
	"cache.encryption_key":         "AUTOMEET_CACHE_KEY",
}

// Resolver finds config.yml and .env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles are the files a load will read. Empty means none found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns the explicit paths in opts, searching for any that
// are unset.
func (r *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = r.first(configCandidates(serviceName))
	}
	if files.EnvFile == "" {
		files.EnvFile = r.first(envCandidates(serviceName))
	}
	return files
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configCandidates(serviceName string) []string {
	return []string{
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		fmt.Sprintf("../cmd/%s/config.yml", serviceName),
		"./config/config.yml",
		"../config/config.yml",
		"./config.yml",
	}
}

func envCandidates(serviceName string) []string {
	var paths []string
	for _, name := range []string{".env." + serviceName, ".env"} {
		for _, dir := range []string{"./cmd/" + serviceName, "./config", ".", ".."} {
			paths = append(paths, dir+"/"+name)
		}
	}
	return paths
}

// LoaderConfig holds loader dependencies and file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	Defaults   map[string]any
	Logger     *logger.Logger
}

// LoaderOption configures LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem replaces the file system, mainly for tests.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithDefaults sets viper defaults by dotted key.
func WithDefaults(defaults map[string]any) LoaderOption {
	return func(lc *LoaderConfig) { lc.Defaults = defaults }
}

// WithLogger sets the logger used for load warnings.
func WithLogger(l *logger.Logger) LoaderOption {
	return func(lc *LoaderConfig) { lc.Logger = l }
}

// LoadConfig reads the resolved config and env files plus the environment
// into cfg. A missing or unreadable file is logged and skipped.
func LoadConfig(serviceName string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: OSFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.Logger == nil {
		lc.Logger = logger.Get("config")
	}

	files := (&Resolver{FileSystem: lc.FileSystem}).ResolveFiles(serviceName, lc)
	v := viper.New()
	for k, val := range lc.Defaults {
		v.SetDefault(k, val)
	}

	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			lc.Logger.Warn("failed to read config file", logger.Fields("file", files.ConfigFile, logger.FieldError, err.Error()))
		}
	}
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			lc.Logger.Warn("failed to load env file", logger.Fields("file", files.EnvFile, logger.FieldError, err.Error()))
		}
	}
	bindEnv(v)

	if err := v.Unmarshal(cfg); err != nil {
		return errors.ConfigInvalid(serviceName, err.Error()).WithCause(err)
	}
	return nil
}

// Load reads, defaults and validates an AppConfig.
func Load(serviceName string, opts ...LoaderOption) (*AppConfig, error) {
	opts = append([]LoaderOption{WithDefaults(Defaults())}, opts...)
	cfg := &AppConfig{}
	if err := LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnv overlays the process environment onto v. Each variable is set
// under every nesting its underscores allow, so QUEUE_STOP_TIMEOUT reaches
// queue.stop_timeout.
func bindEnv(v *viper.Viper) {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, variant := range envKeyVariants(key) {
			if v.IsSet(variant) || knownPrefix(variant) {
				v.Set(variant, value)
			}
		}
	}
	for key, env := range credentialEnv {
		if value, ok := os.LookupEnv(env); ok && !v.IsSet(key) {
			v.Set(key, value)
		}
	}
}

// knownPrefix limits new keys to the sections automeet reads, so unrelated
// variables such as PATH or NAME stay out of the decoded tree. Top-level
// scalars are only overridden when the config file sets them.
func knownPrefix(key string) bool {
	segments := strings.Split(key, ".")
	switch segments[0] {
	case "rate_limits":
		return len(segments) == 3 && (segments[2] == "capacity" || segments[2] == "refill_rate")
	case "logging", "transcription", "media", "cache", "queue", "analysis", "providers", "resilience", "server", "telemetry":
		return len(segments) > 1
	}
	return false
}

// maxEnvParts bounds the variants generated for one variable.
const maxEnvParts = 8

// envKeyVariants lists the dotted keys an environment variable may address:
// every way of turning its underscores into dots.
//
//	QUEUE_STOP_TIMEOUT -> [queue_stop_timeout queue.stop_timeout queue_stop.timeout queue.stop.timeout]
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) == 1 || len(parts) > maxEnvParts {
		return []string{lower}
	}

	n := len(parts) - 1
	variants := make([]string, 0, 1<<n)
	var b strings.Builder
	for mask := 0; mask < 1<<n; mask++ {
		b.Reset()
		b.WriteString(parts[0])
		for i := 1; i < len(parts); i++ {
			if mask&(1<<(i-1)) != 0 {
				b.WriteByte('.')
			} else {
				b.WriteByte('_')
			}
			b.WriteString(parts[i])
		}
		variants = append(variants, b.String())
	}
	return variants
}
