package agent

import (
	"errors"
	"fmt"

	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/search"
)

// Config tunes how a follower requests and walks paths.
type Config struct {
	// AcceptanceRadius is how close the agent must get to a waypoint or the
	// destination to count as reaching it.
	AcceptanceRadius float32 `yaml:"acceptance_radius" json:"acceptance_radius"`
	// SampleRadius bounds how far positions are projected onto the graph.
	SampleRadius float32              `yaml:"sample_radius" json:"sample_radius"`
	AreaTypes    graph.AreaKindMask   `yaml:"area_types" json:"area_types"`
	Layers       graph.LayerMask      `yaml:"layers" json:"layers"`
	Priority     graph.SamplePriority `yaml:"priority" json:"priority"`
	Params       search.Params        `yaml:"params" json:"params"`

	// KeepPathWhileCalculating keeps following the current path while a new
	// one is computed, allowing two pending requests instead of one.
	KeepPathWhileCalculating bool `yaml:"keep_path_while_calculating" json:"keep_path_while_calculating"`
	CheckBacktrack           bool `yaml:"check_backtrack" json:"check_backtrack"`
	StaticOnlySweep          bool `yaml:"static_only_sweep" json:"static_only_sweep"`

	SweepRadius float32 `yaml:"sweep_radius" json:"sweep_radius"`
	// AccelerationEstimate drives the stopping distance; zero disables slowing down.
	AccelerationEstimate float32 `yaml:"acceleration_estimate" json:"acceleration_estimate"`
}

// DefaultConfig returns a config for a roughly human-sized agent.
func DefaultConfig() Config {
	params := search.DefaultParams()
	return Config{
		AcceptanceRadius:         0.5,
		SampleRadius:             2,
		AreaTypes:                params.AreaTypes,
		Layers:                   params.Layers,
		Priority:                 graph.PriorityNearest,
		Params:                   params,
		KeepPathWhileCalculating: true,
		CheckBacktrack:           true,
		SweepRadius:              0.3,
		AccelerationEstimate:     8,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	var errs []error
	if c.AcceptanceRadius <= 0 {
		errs = append(errs, errors.New("acceptance_radius must be positive"))
	}
	if c.SampleRadius < 0 {
		errs = append(errs, errors.New("sample_radius must not be negative"))
	}
	if c.SweepRadius < 0 {
		errs = append(errs, errors.New("sweep_radius must not be negative"))
	}
	if c.AccelerationEstimate < 0 {
		errs = append(errs, errors.New("acceleration_estimate must not be negative"))
	}
	if c.AreaTypes == 0 {
		errs = append(errs, fmt.Errorf("area_types excludes every kind"))
	}
	return errors.Join(errs...)
}

func (c *Config) maxPending() int {
	if c.KeepPathWhileCalculating {
		return 2
	}
	return 1
}
