package scheduler

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeSubmitted()
		m.observeRejected("malformed")
		m.observeCompleted("found")
		m.observeCancelled()
		m.observeForcedJoin()
		m.observeRecovery(2)
		m.observeSearch(time.Millisecond, 3)
		m.setQueue(1, 1)
	})
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observeSubmitted()
	m.observeSubmitted()
	m.observeRejected("stopped")
	m.observeCompleted("found")
	m.observeCompleted("stale")
	m.observeRecovery(3)
	m.setQueue(5, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("stopped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completed.WithLabelValues("stale")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.recoveries))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inFlight))

	n, err := testutil.GatherAndCount(reg, "regionnav_path_requests_completed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
