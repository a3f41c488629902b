package server

import (
	"github.com/kbukum/automeet/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds
	MaxBodySize  string `yaml:"max_body_size" mapstructure:"max_body_size"` // e.g. "100MB"
	// UploadDir receives uploaded audio. Empty uses the system temp dir.
	UploadDir string          `yaml:"upload_dir" mapstructure:"upload_dir"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Enabled   bool            `yaml:"enabled" mapstructure:"enabled"`
}

// RateLimitConfig bounds API requests per client.
type RateLimitConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Capacity   int     `yaml:"capacity" mapstructure:"capacity"`
	RefillRate float64 `yaml:"refill_rate" mapstructure:"refill_rate"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60
	}
	if c.WriteTimeout == 0 {
		// Synchronous transcriptions can take minutes.
		c.WriteTimeout = 600
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "100MB"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 20
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 5
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.ConfigInvalid("server.port", "must be between 0 and 65535")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return errors.ConfigInvalid("server.timeouts", "must be non-negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity < 1 || c.RateLimit.RefillRate <= 0) {
		return errors.ConfigInvalid("server.rate_limit", "capacity must be at least 1 and refill_rate positive")
	}
	return nil
}
