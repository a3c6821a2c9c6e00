package app

import (
	"github.com/vk/gridmapper/internal/mapperr"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Paths []string // hcl files or directories

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// ProgressURL, when set, streams engine progress to a socket.io server.
	ProgressURL       string
	ProgressNamespace string

	// OutputPath receives the JSON report. Empty writes it to the app's
	// output writer.
	OutputPath    string
	SaveStatePath string
	ResumePath    string

	// Overrides of the HCL placement and routing blocks. Nil keeps the
	// file value.
	Seed               *uint64
	MoveAttempts       *int
	InitialTemperature *float64
	MaxIterations      *int
	Batched            *bool
}

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		return nil, mapperr.NewConfigError("paths", "at least one input path is required")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if _, ok := parseLevel(cfg.LogLevel); !ok {
		return nil, mapperr.NewConfigError("log_level", "must be one of debug, info, warn, error; got %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, mapperr.NewConfigError("log_format", "must be text or json; got %q", cfg.LogFormat)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, mapperr.NewConfigError("healthcheck_port", "must be between 0 and 65535; got %d", cfg.HealthcheckPort)
	}
	if cfg.ResumePath != "" && cfg.Seed != nil {
		return nil, mapperr.NewConfigError("seed", "cannot be combined with resume; the saved state carries its own generator")
	}
	return &cfg, nil
}
