// internal/workers/catalog/resolve-catalog-view/config.go
package resolvecatalogview

import (
	"fmt"
	"time"

	"catalog-bff/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
	}
}

// FromCamunda derives the worker settings from the camunda config section.
func FromCamunda(cfg config.CamundaConfig) *Config {
	c := DefaultConfig()
	c.Enabled = cfg.Enabled
	if cfg.MaxJobsActive > 0 {
		c.MaxJobsActive = cfg.MaxJobsActive
	}
	if cfg.Timeout > 0 {
		c.Timeout = config.GetDuration(cfg.Timeout)
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	return nil
}
