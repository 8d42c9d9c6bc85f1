// Package config loads the regionnav server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/o0olele/regionnav-go/agent"
	"github.com/o0olele/regionnav-go/logging"
	"github.com/o0olele/regionnav-go/scheduler"
)

// Config is the top-level server configuration.
type Config struct {
	Scheduler scheduler.Config `yaml:"scheduler"`
	Agent     agent.Config     `yaml:"agent"`
	Server    Server           `yaml:"server"`
	Logging   Logging          `yaml:"logging"`
	Sampler   Sampler          `yaml:"sampler"`
}

// Server configures the debug HTTP API and the tick loop.
type Server struct {
	Addr      string `yaml:"addr"`
	PprofAddr string `yaml:"pprof_addr"` // empty disables profiling
	// TickInterval is the period of Scheduler.Update.
	TickInterval time.Duration `yaml:"tick_interval"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

type Logging struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // json or text
	AddSource bool   `yaml:"add_source"`
}

// Sampler configures the graph sampler cache.
type Sampler struct {
	CacheSize int     `yaml:"cache_size"`
	Radius    float32 `yaml:"radius"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Scheduler: scheduler.DefaultConfig(),
		Agent:     agent.DefaultConfig(),
		Server: Server{
			Addr:         ":8080",
			PprofAddr:    "localhost:6060",
			TickInterval: 50 * time.Millisecond,
			CORSOrigins:  []string{"*"},
		},
		Logging: Logging{Level: "info", Format: "json"},
		Sampler: Sampler{CacheSize: 1024, Radius: 2},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if err := c.Agent.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("agent: %w", err))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server: addr is required"))
	}
	if c.Server.TickInterval <= 0 {
		errs = append(errs, errors.New("server: tick_interval must be positive"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}
	if c.Sampler.CacheSize < 0 {
		errs = append(errs, errors.New("sampler: cache_size must not be negative"))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger.
func (c *Config) Logger() logging.Logger {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.NewLogger(&logging.Config{
		Level:     level,
		Format:    c.Logging.Format,
		Output:    os.Stderr,
		AddSource: c.Logging.AddSource,
	})
}
