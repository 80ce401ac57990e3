package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/melodex/melodex/internal/env"
)

// ErrTargetURLRequired is returned when the scheduler has no server to call.
var ErrTargetURLRequired = errors.New("MELODEX_SCHEDULER_TARGET_URL is required")

// SchedulerConfig holds all configuration for the scheduler binary.
type SchedulerConfig struct {
	// TargetURL is the base URL of the pipeline server, e.g.
	// http://localhost:8081.
	TargetURL string `env:"MELODEX_SCHEDULER_TARGET_URL"`

	// APIToken is sent as a bearer token on every job invocation.
	APIToken string `env:"MELODEX_API_TOKEN"`

	// RequestTimeout bounds one job invocation (zero = application default).
	RequestTimeout time.Duration `env:"MELODEX_SCHEDULER_REQUEST_TIMEOUT"`

	Observability ObservabilityConfig
}

// Validate validates the scheduler configuration.
func (c *SchedulerConfig) Validate() error {
	if c.TargetURL == "" {
		return ErrTargetURLRequired
	}
	return nil
}

// LoadSchedulerConfig loads and validates scheduler configuration from
// environment.
func LoadSchedulerConfig() (*SchedulerConfig, error) {
	cfg := &SchedulerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load scheduler config: %w", err)
	}

	return cfg, nil
}
