package orchestrator

import (
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/transcription"
	"github.com/kbukum/automeet/validation"
)

// RateLimit describes one provider's token bucket.
type RateLimit struct {
	Capacity   int     `json:"capacity" validate:"gte=1"`
	RefillRate float64 `json:"refill_rate" validate:"gt=0"`
}

// DefaultRateLimit applies to providers with no configured bucket.
var DefaultRateLimit = RateLimit{Capacity: 5, RefillRate: 1}

// Resilience tunes retries and circuit breaking around provider calls.
type Resilience struct {
	// MaxAttempts is the attempts per call, including the first. Zero or
	// one disables retrying.
	MaxAttempts    int           `json:"max_attempts" validate:"gte=0"`
	InitialBackoff time.Duration `json:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `json:"max_backoff" validate:"gte=0"`
	// BreakerFailures is the consecutive failures that open a provider's
	// circuit. Zero disables the breaker.
	BreakerFailures int           `json:"breaker_failures" validate:"gte=0"`
	BreakerTimeout  time.Duration `json:"breaker_timeout" validate:"gte=0"`
}

// Config tunes the orchestrator.
type Config struct {
	// Language is used when a request names none.
	Language string `json:"language"`
	// AllowedExtensions restricts accepted audio files.
	AllowedExtensions []string `json:"allowed_extensions"`
	// RateLimits maps provider names to their buckets.
	RateLimits map[string]RateLimit `json:"rate_limits" validate:"dive"`

	// AnalysisChunkLines is the transcript line count above which analysis
	// runs chunk by chunk.
	AnalysisChunkLines int `json:"analysis_chunk_lines" validate:"gte=0"`
	// AnalysisChunkSize is the maximum characters per analysis chunk.
	AnalysisChunkSize int `json:"analysis_chunk_size" validate:"gte=0"`
	// AnalysisMaxChunks caps the chunks sent to the model. Zero is no cap.
	AnalysisMaxChunks int `json:"analysis_max_chunks" validate:"gte=0"`

	Workers     int           `json:"workers" validate:"gte=1"`
	BufferSize  int           `json:"buffer_size" validate:"gte=0"`
	JobTimeout  time.Duration `json:"job_timeout" validate:"gte=0"`
	StopTimeout time.Duration `json:"stop_timeout" validate:"gte=0"`
	// JobRetention is how long finished jobs stay queryable.
	JobRetention time.Duration `json:"job_retention" validate:"gte=0"`

	Resilience Resilience `json:"resilience"`

	// SweepInterval is how often expired cache entries are dropped. Zero
	// disables the sweeper.
	SweepInterval time.Duration `json:"sweep_interval" validate:"gte=0"`
}

// DefaultConfig returns the settings used for unset fields.
func DefaultConfig() Config {
	return Config{
		Language: "pt",
		RateLimits: map[string]RateLimit{
			"assemblyai": {Capacity: 5, RefillRate: 0.167},
			"openai":     {Capacity: 3, RefillRate: 0.05},
		},
		AnalysisChunkLines: 1000,
		AnalysisChunkSize:  12000,
		Workers:            4,
		BufferSize:         64,
		JobTimeout:         10 * time.Minute,
		StopTimeout:        30 * time.Second,
		JobRetention:       time.Hour,
		SweepInterval:      10 * time.Minute,
	}
}

// ApplyDefaults fills unset fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.AllowedExtensions == nil {
		c.AllowedExtensions = transcription.DefaultAudioExtensions
	}
	if c.RateLimits == nil {
		c.RateLimits = d.RateLimits
	}
	if c.AnalysisChunkLines == 0 {
		c.AnalysisChunkLines = d.AnalysisChunkLines
	}
	if c.AnalysisChunkSize == 0 {
		c.AnalysisChunkSize = d.AnalysisChunkSize
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.BufferSize == 0 {
		c.BufferSize = d.BufferSize
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = d.StopTimeout
	}
	if c.JobRetention == 0 {
		c.JobRetention = d.JobRetention
	}
}

// Validate checks the configuration and reports problems as CONFIG_INVALID.
func (c *Config) Validate() error {
	err := validation.Validate(c)
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return errors.ConfigInvalid("orchestrator", appErr.Message).WithDetail("fields", appErr.Details["fields"])
	}
	return errors.ConfigInvalid("orchestrator", err.Error())
}

// rateLimit returns the bucket settings for a provider name.
func (c *Config) rateLimit(name string) RateLimit {
	if rl, ok := c.RateLimits[name]; ok {
		return rl
	}
	return DefaultRateLimit
}
