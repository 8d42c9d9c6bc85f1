package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig_YAML(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(`
mode: worker
max_concurrent: 3
max_ticks_before_join: 2
tightening_iterations: 0
pool_size: 8
`), &cfg))
	assert.Equal(t, ModeBackground, cfg.Mode)
	assert.Equal(t, 3, cfg.MaxConcurrent)
	assert.Zero(t, cfg.TighteningIterations)
	assert.NoError(t, cfg.Validate())

	err := yaml.Unmarshal([]byte("mode: sometimes\n"), &cfg)
	assert.ErrorContains(t, err, "unknown scheduler mode")
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := Config{Mode: ModeDeferred, MaxTicksBeforeJoin: 1}
	assert.NoError(t, cfg.Validate(), "deferred mode ignores max_concurrent")

	cfg.PoolSize = -1
	cfg.Mode = Mode(9)
	err := cfg.Validate()
	assert.ErrorContains(t, err, "unknown mode")
	assert.ErrorContains(t, err, "pool_size")
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "immediate", ModeImmediate.String())
	assert.Equal(t, "deferred", ModeDeferred.String())
	assert.Equal(t, "mode(7)", Mode(7).String())

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte(" Batch ")))
	assert.Equal(t, ModeDeferred, m)
}
