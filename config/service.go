package config

import (
	"fmt"
	"slices"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
)

var environments = []string{"development", "staging", "production"}

// ServiceConfig holds the fields every automeet process needs. AppConfig
// embeds it with mapstructure squash so the keys sit at the top level.
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// ApplyDefaults fills the environment and logging defaults.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultServiceName
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the service fields.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return errors.ConfigInvalid("name", "is required")
	}
	if !slices.Contains(environments, c.Environment) {
		return errors.ConfigInvalid("environment", fmt.Sprintf("must be one of %v (got: %s)", environments, c.Environment))
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.ConfigInvalid("logging", err.Error())
	}
	return nil
}
