package config

import (
	"slices"
	"time"

	"github.com/kbukum/automeet/encryption"
	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/media"
	"github.com/kbukum/automeet/observability"
	"github.com/kbukum/automeet/orchestrator"
	"github.com/kbukum/automeet/server"
	"github.com/kbukum/automeet/transcription"
	"github.com/kbukum/automeet/version"
)

// DefaultServiceName names the service when the config omits it.
const DefaultServiceName = "automeet"

// AppConfig is the full automeet configuration.
type AppConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Transcription TranscriptionConfig        `yaml:"transcription" mapstructure:"transcription"`
	Media         MediaConfig                `yaml:"media" mapstructure:"media"`
	RateLimits    map[string]RateLimitConfig `yaml:"rate_limits" mapstructure:"rate_limits"`
	Cache         CacheConfig                `yaml:"cache" mapstructure:"cache"`
	Queue         QueueConfig                `yaml:"queue" mapstructure:"queue"`
	Analysis      AnalysisConfig             `yaml:"analysis" mapstructure:"analysis"`
	Providers     ProvidersConfig            `yaml:"providers" mapstructure:"providers"`
	Resilience    ResilienceConfig           `yaml:"resilience" mapstructure:"resilience"`
	Server        server.Config              `yaml:"server" mapstructure:"server"`
	Telemetry     TelemetryConfig            `yaml:"telemetry" mapstructure:"telemetry"`
}

// TranscriptionConfig sets request defaults.
type TranscriptionConfig struct {
	Language          string   `yaml:"language" mapstructure:"language"`
	AllowedExtensions []string `yaml:"allowed_extensions" mapstructure:"allowed_extensions"`
}

// MediaConfig controls ffmpeg audio extraction for video inputs.
type MediaConfig struct {
	Enabled      bool `yaml:"enabled" mapstructure:"enabled"`
	media.Config `yaml:",inline" mapstructure:",squash"`
}

// RateLimitConfig is one provider's token bucket.
type RateLimitConfig struct {
	Capacity   int     `yaml:"capacity" mapstructure:"capacity"`
	RefillRate float64 `yaml:"refill_rate" mapstructure:"refill_rate"`
}

// CacheConfig controls the transcription result cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	// EncryptionKey, when set, seals cache files at rest.
	EncryptionKey       string `yaml:"encryption_key" mapstructure:"encryption_key"`
	EncryptionAlgorithm string `yaml:"encryption_algorithm" mapstructure:"encryption_algorithm"`
}

// QueueConfig controls background transcription jobs.
type QueueConfig struct {
	Workers     int           `yaml:"workers" mapstructure:"workers"`
	BufferSize  int           `yaml:"buffer_size" mapstructure:"buffer_size"`
	JobTimeout  time.Duration `yaml:"job_timeout" mapstructure:"job_timeout"`
	StopTimeout time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout"`
	// JobRetention is how long finished jobs stay queryable.
	JobRetention time.Duration `yaml:"job_retention" mapstructure:"job_retention"`
}

// AnalysisConfig controls how long transcripts are split for the model.
type AnalysisConfig struct {
	ChunkLines int `yaml:"chunk_lines" mapstructure:"chunk_lines"`
	ChunkSize  int `yaml:"chunk_size" mapstructure:"chunk_size"`
	MaxChunks  int `yaml:"max_chunks" mapstructure:"max_chunks"`
}

// ProvidersConfig selects providers by registered name. Every other key
// under providers is a per-provider settings map, e.g. providers.whisper.
type ProvidersConfig struct {
	Transcription  string         `yaml:"transcription" mapstructure:"transcription"`
	TextGeneration string         `yaml:"text_generation" mapstructure:"text_generation"`
	Streaming      string         `yaml:"streaming" mapstructure:"streaming"`
	Settings       map[string]any `yaml:",inline" mapstructure:",remain"`
}

// For returns the settings map for a provider, or nil.
func (p ProvidersConfig) For(name string) map[string]any {
	m, _ := p.Settings[name].(map[string]any)
	return m
}

// ResilienceConfig controls retries and circuit breaking around provider
// calls.
type ResilienceConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts     int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff  time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	BreakerFailures int           `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" mapstructure:"breaker_timeout"`
}

// TelemetryConfig controls OTLP metric and trace export.
type TelemetryConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// Defaults are loader defaults for booleans whose zero value is not the
// default.
func Defaults() map[string]any {
	return map[string]any{
		"cache.enabled":      true,
		"resilience.enabled": true,
		"server.enabled":     true,
		"telemetry.insecure": true,
	}
}

// ApplyDefaults fills every unset field.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Version == "" {
		c.Version = version.Version
	}

	if c.Transcription.Language == "" {
		c.Transcription.Language = "pt"
	}
	if c.Media.Enabled {
		c.Media.ApplyDefaults()
	}
	if c.Transcription.AllowedExtensions == nil {
		c.Transcription.AllowedExtensions = transcription.DefaultAudioExtensions
		if c.Media.Enabled {
			c.Transcription.AllowedExtensions = union(transcription.DefaultAudioExtensions, c.Media.Extensions)
		}
	}
	if c.RateLimits == nil {
		c.RateLimits = make(map[string]RateLimitConfig)
	}
	for name, rl := range orchestrator.DefaultConfig().RateLimits {
		if _, ok := c.RateLimits[name]; !ok {
			c.RateLimits[name] = RateLimitConfig(rl)
		}
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = 24 * time.Hour
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache"
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = 10 * time.Minute
	}

	if c.Resilience.MaxAttempts == 0 {
		c.Resilience.MaxAttempts = 3
	}
	if c.Resilience.InitialBackoff == 0 {
		c.Resilience.InitialBackoff = time.Second
	}
	if c.Resilience.MaxBackoff == 0 {
		c.Resilience.MaxBackoff = 30 * time.Second
	}
	if c.Resilience.BreakerFailures == 0 {
		c.Resilience.BreakerFailures = 5
	}
	if c.Resilience.BreakerTimeout == 0 {
		c.Resilience.BreakerTimeout = time.Minute
	}

	oc := orchestrator.DefaultConfig()
	if c.Queue.Workers == 0 {
		c.Queue.Workers = oc.Workers
	}
	if c.Queue.BufferSize == 0 {
		c.Queue.BufferSize = oc.BufferSize
	}
	if c.Queue.JobTimeout == 0 {
		c.Queue.JobTimeout = oc.JobTimeout
	}
	if c.Queue.StopTimeout == 0 {
		c.Queue.StopTimeout = oc.StopTimeout
	}
	if c.Queue.JobRetention == 0 {
		c.Queue.JobRetention = oc.JobRetention
	}
	if c.Analysis.ChunkLines == 0 {
		c.Analysis.ChunkLines = oc.AnalysisChunkLines
	}
	if c.Analysis.ChunkSize == 0 {
		c.Analysis.ChunkSize = oc.AnalysisChunkSize
	}

	if c.Providers.Transcription == "" {
		c.Providers.Transcription = "mock"
	}
	if c.Providers.TextGeneration == "" {
		c.Providers.TextGeneration = "null"
	}

	c.Server.ApplyDefaults()

	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = 15 * time.Second
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1
	}
}

// Validate checks every section. Call ApplyDefaults first.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return errors.ConfigInvalid("cache.ttl", "must be positive")
	}
	if c.Cache.SweepInterval < 0 {
		return errors.ConfigInvalid("cache.sweep_interval", "must be non-negative")
	}
	switch encryption.Algorithm(c.Cache.EncryptionAlgorithm) {
	case "", encryption.AlgorithmAESGCM, encryption.AlgorithmChaCha20:
	default:
		return errors.ConfigInvalid("cache.encryption_algorithm", "must be aes-256-gcm or chacha20-poly1305")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.ConfigInvalid("telemetry.sample_rate", "must be between 0 and 1")
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	oc := c.Orchestrator()
	return oc.Validate()
}

// Orchestrator converts the relevant sections into an orchestrator.Config.
func (c *AppConfig) Orchestrator() orchestrator.Config {
	oc := orchestrator.Config{
		Language:           c.Transcription.Language,
		AllowedExtensions:  c.Transcription.AllowedExtensions,
		RateLimits:         make(map[string]orchestrator.RateLimit, len(c.RateLimits)),
		AnalysisChunkLines: c.Analysis.ChunkLines,
		AnalysisChunkSize:  c.Analysis.ChunkSize,
		AnalysisMaxChunks:  c.Analysis.MaxChunks,
		Workers:            c.Queue.Workers,
		BufferSize:         c.Queue.BufferSize,
		JobTimeout:         c.Queue.JobTimeout,
		StopTimeout:        c.Queue.StopTimeout,
		JobRetention:       c.Queue.JobRetention,
	}
	for name, rl := range c.RateLimits {
		oc.RateLimits[name] = orchestrator.RateLimit(rl)
	}
	if c.Cache.Enabled {
		oc.SweepInterval = c.Cache.SweepInterval
	}
	if r := c.Resilience; r.Enabled {
		oc.Resilience = orchestrator.Resilience{
			MaxAttempts:     r.MaxAttempts,
			InitialBackoff:  r.InitialBackoff,
			MaxBackoff:      r.MaxBackoff,
			BreakerFailures: r.BreakerFailures,
			BreakerTimeout:  r.BreakerTimeout,
		}
	}
	return oc
}

// Meter returns the OTLP meter settings.
func (c *AppConfig) Meter() observability.MeterConfig {
	return observability.MeterConfig{
		ServiceName:    c.Name,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		Interval:       c.Telemetry.Interval,
	}
}

// Tracer returns the OTLP tracer settings.
func (c *AppConfig) Tracer() observability.TracerConfig {
	return observability.TracerConfig{
		ServiceName:    c.Name,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// union returns a followed by the entries of b not in a.
func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
