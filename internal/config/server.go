package config

import (
	"fmt"
	"time"

	"github.com/melodex/melodex/internal/env"
)

// ServerConfig holds all configuration for the server binary.
type ServerConfig struct {
	Database        DatabaseConfig
	HTTP            HTTPConfig
	Auth            AuthConfig
	Spotify         SpotifyConfig
	Genius          GeniusConfig
	Discogs         DiscogsConfig
	Pipeline        PipelineConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"MELODEX_SHUTDOWN_TIMEOUT"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host              string        `env:"MELODEX_HTTP_HOST"`
	Port              string        `env:"MELODEX_HTTP_PORT"`
	ReadTimeout       time.Duration `env:"MELODEX_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `env:"MELODEX_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `env:"MELODEX_HTTP_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `env:"MELODEX_HTTP_READ_HEADER_TIMEOUT"`
	MaxBodyBytes      int64         `env:"MELODEX_HTTP_MAX_BODY_BYTES"`

	// AllowedOrigins is a comma-separated CORS allowlist; empty allows any
	// origin, which suits the scheduler-to-server deployment.
	AllowedOrigins string `env:"MELODEX_CORS_ALLOWED_ORIGINS"`
}

// AuthConfig holds the static bearer token protecting job invocation.
// Empty disables authentication (local development only).
type AuthConfig struct {
	APIToken string `env:"MELODEX_API_TOKEN"`
}

// PipelineConfig holds dispatcher and maintenance tuning.
// Zero values fall back to the application defaults.
type PipelineConfig struct {
	MaxConcurrentJobs int           `env:"MELODEX_MAX_CONCURRENT_JOBS"`
	OperationTimeout  time.Duration `env:"MELODEX_OPERATION_TIMEOUT"`
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"MELODEX_OTEL_ENABLED"`
	ServiceName string `env:"OTEL_SERVICE_NAME"`
}

// LoadServerConfig loads and validates server configuration from environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return cfg, nil
}
