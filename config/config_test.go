package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/regionnav-go/scheduler"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regionnav.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, scheduler.ModeBackground, cfg.Scheduler.Mode)
	assert.NotNil(t, cfg.Logger())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, `
scheduler:
  mode: deferred
  max_ticks_before_join: 8
server:
  addr: "127.0.0.1:9000"
  tick_interval: 20ms
logging:
  level: debug
  format: text
agent:
  acceptance_radius: 0.25
  keep_path_while_calculating: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, scheduler.ModeDeferred, cfg.Scheduler.Mode)
	assert.Equal(t, 8, cfg.Scheduler.MaxTicksBeforeJoin)
	assert.Equal(t, 32, cfg.Scheduler.PoolSize, "unset keys keep their default")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 20*time.Millisecond, cfg.Server.TickInterval)
	assert.Equal(t, "localhost:6060", cfg.Server.PprofAddr)
	assert.InDelta(t, 0.25, cfg.Agent.AcceptanceRadius, 1e-6)
	assert.False(t, cfg.Agent.KeepPathWhileCalculating)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeFile(t, "scheduler: [1, 2\n"))
	assert.ErrorContains(t, err, "parsing config YAML")

	_, err = Load(writeFile(t, `
server:
  addr: ""
  tick_interval: 0s
logging:
  level: loud
  format: xml
`))
	require.Error(t, err)
	for _, want := range []string{"addr is required", "tick_interval", "unknown log level", "unknown format"} {
		assert.ErrorContains(t, err, want)
	}
}
