// Package config loads process configuration for state machine programs
// from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/statemachine"
	"github.com/amp-labs/amp-fsm/telemetry"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig is returned when the environment cannot be parsed into Config.
var ErrParsingConfig = errors.New("failed to parse config")

var dotenvLoaded sync.Once //nolint:gochecknoglobals

// Config is the full environment configuration.
type Config struct {
	Log       logger.Settings
	Machine   Machine
	Telemetry telemetry.Config
}

// Machine configures engines and deferred engines.
type Machine struct {
	HistoryEnabled    bool `env:"FSM_HISTORY_ENABLED"    envDefault:"true"`
	HistoryCapacity   int  `env:"FSM_HISTORY_CAPACITY"   envDefault:"0"`
	StrictTransitions bool `env:"FSM_STRICT_TRANSITIONS" envDefault:"false"`
	StrictSameState   bool `env:"FSM_STRICT_SAME_STATE"  envDefault:"false"`
	DrainOnClose      bool `env:"FSM_DRAIN_ON_CLOSE"     envDefault:"true"`
	Metrics           bool `env:"FSM_METRICS"            envDefault:"true"`
	Tracing           bool `env:"FSM_TRACING"            envDefault:"true"`
}

// Load reads .env (once per process, if present) and parses the environment.
func Load() (*Config, error) {
	dotenvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})

	return Parse(env.Options{})
}

// Parse parses the environment with opts, without touching .env files.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}

	if cfg.Machine.HistoryCapacity < 0 {
		return nil, fmt.Errorf("%w: FSM_HISTORY_CAPACITY: %w", ErrParsingConfig, statemachine.ErrInvalidHistoryCapacity)
	}

	cfg.Telemetry.ResolveEndpoints()

	return &cfg, nil
}

// EngineOptions translates the machine settings into engine options.
func (c *Config) EngineOptions() []statemachine.Option {
	opts := []statemachine.Option{
		statemachine.WithErrorOnFailedTransition(c.Machine.StrictTransitions),
		statemachine.WithErrorOnSameStateTransition(c.Machine.StrictSameState),
		statemachine.WithMetrics(c.Machine.Metrics),
		statemachine.WithTracing(c.Machine.Tracing),
	}

	if c.Machine.HistoryEnabled {
		opts = append(opts, statemachine.WithHistory(c.Machine.HistoryCapacity))
	}

	return opts
}

// DeferredOptions translates the machine settings into deferred engine options.
func (c *Config) DeferredOptions() []statemachine.DeferredOption {
	return []statemachine.DeferredOption{
		statemachine.WithDrainOnClose(c.Machine.DrainOnClose),
	}
}
