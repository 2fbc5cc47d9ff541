// Package mcfconfig loads MCF's process-level configuration from the
// environment, exactly the way the teacher's ws/config.go does (struct
// tags parsed by caarlos0/env, an optional .env overlay via godotenv, and
// range validation in a Validate method), plus a small JSON search-path
// merge for the per-component configuration bridge described in
// spec.md §4.3 (JSON parsing itself is an explicit Non-goal of the core
// per spec.md §1, so that merge stays minimal stdlib — see MergeJSON).
package mcfconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ProcessConfig holds the reserved-topic-namespace prefixes and runtime
// tunables spec.md §6/§4.4/§4.5 reference as "configuration", not
// per-value-type schema.
type ProcessConfig struct {
	LogPrefix           string `env:"MCF_LOG_PREFIX" envDefault:"/mcf/log/"`
	ConfigPrefix        string `env:"MCF_CONFIG_PREFIX" envDefault:"/mcf/configs/"`
	StatsPrefix         string `env:"MCF_STATS_PREFIX" envDefault:"/mcf/runtime/"`
	RecorderStatusTopic string `env:"MCF_RECORDER_STATUS_TOPIC" envDefault:"/mcf/recorder/status"`
	TraceEventsTopic    string `env:"MCF_TRACE_EVENTS_TOPIC" envDefault:"/mcf/trace_events"`

	RecorderMaxQueue int           `env:"MCF_RECORDER_MAX_QUEUE" envDefault:"0"`
	StatsWindow      time.Duration `env:"MCF_STATS_WINDOW" envDefault:"1s"`

	LogLevel  string `env:"MCF_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MCF_LOG_FORMAT" envDefault:"json"`

	TraceMarkerFile string `env:"MCF_TRACE_MARKER_FILE" envDefault:""`
}

// Load reads ProcessConfig from an optional .env overlay followed by the
// environment, then validates it. Priority: env vars > .env file > struct
// defaults, matching the teacher's LoadConfig.
func Load(logger *zerolog.Logger) (*ProcessConfig, error) {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Info().Msg("no .env file found, using environment variables only")
	}
	cfg := &ProcessConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("mcfconfig: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mcfconfig: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks ProcessConfig for internally-inconsistent values.
func (c *ProcessConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("MCF_LOG_LEVEL must be one of debug,info,warn,error, got %q", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("MCF_LOG_FORMAT must be one of json,pretty, got %q", c.LogFormat)
	}
	if c.RecorderMaxQueue < 0 {
		return fmt.Errorf("MCF_RECORDER_MAX_QUEUE must be >= 0, got %d", c.RecorderMaxQueue)
	}
	return nil
}
