package scheduler

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Mode selects how requests are executed.
type Mode uint8

const (
	// ModeImmediate solves each request inside FindPath.
	ModeImmediate Mode = iota
	// ModeDeferred solves every queued request synchronously once per Update.
	ModeDeferred
	// ModeBackground solves requests on goroutines, MaxConcurrent at a time.
	ModeBackground
)

func (m Mode) String() string {
	switch m {
	case ModeImmediate:
		return "immediate"
	case ModeDeferred:
		return "deferred"
	case ModeBackground:
		return "background"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "immediate":
		*m = ModeImmediate
	case "deferred", "batch":
		*m = ModeDeferred
	case "background", "worker":
		*m = ModeBackground
	default:
		return fmt.Errorf("unknown scheduler mode %q", text)
	}
	return nil
}

// Config is the scheduler configuration surface.
type Config struct {
	Mode Mode `yaml:"mode" json:"mode"`
	// MaxConcurrent bounds background searches.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`
	// MaxTicksBeforeJoin is how many Update calls a background search may
	// span before it is joined on the calling goroutine.
	MaxTicksBeforeJoin int `yaml:"max_ticks_before_join" json:"max_ticks_before_join"`
	// TighteningIterations overrides every request's count when >= 0.
	TighteningIterations int `yaml:"tightening_iterations" json:"tightening_iterations"`
	// PoolSize is the number of requests, paths and scratch buffers built up front.
	PoolSize int `yaml:"pool_size" json:"pool_size"`
}

// DefaultConfig runs searches in the background on every CPU.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeBackground,
		MaxConcurrent:        runtime.NumCPU(),
		MaxTicksBeforeJoin:   4,
		TighteningIterations: -1,
		PoolSize:             32,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Mode > ModeBackground {
		errs = append(errs, fmt.Errorf("unknown mode %d", c.Mode))
	}
	if c.Mode == ModeBackground && c.MaxConcurrent < 1 {
		errs = append(errs, errors.New("max_concurrent must be at least 1 in background mode"))
	}
	if c.MaxTicksBeforeJoin < 1 {
		errs = append(errs, errors.New("max_ticks_before_join must be at least 1"))
	}
	if c.PoolSize < 0 {
		errs = append(errs, errors.New("pool_size must not be negative"))
	}
	return errors.Join(errs...)
}
