package coordination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitorFlagsUnhealthyOnErrorRate(t *testing.T) {
	h := NewHealthMonitor(time.Minute)
	h.InitializeAgent("risk")

	h.RecordSuccess("risk")
	h.RecordError("risk")
	health, ok := h.GetAgentHealth("risk")
	require.True(t, ok)
	assert.True(t, health.IsHealthy, "50% error rate is still within tolerance")

	h.RecordError("risk")
	health, _ = h.GetAgentHealth("risk")
	assert.False(t, health.IsHealthy, "error rate above 50% flips unhealthy")
}

func TestHealthMonitorFlagsStaleHeartbeat(t *testing.T) {
	h := NewHealthMonitor(time.Second)
	h.InitializeAgent("execution")

	healthy, unhealthy := h.CheckAllAgents(time.Now().Add(5 * time.Second))
	assert.False(t, healthy)
	assert.Contains(t, unhealthy, "execution")
}

func TestHeartbeatTracksRollingAverage(t *testing.T) {
	h := NewHealthMonitor(time.Minute)
	h.InitializeAgent("strategy")
	now := time.Now()

	h.Heartbeat("strategy", 100, now)
	h.Heartbeat("strategy", 200, now)

	health, ok := h.GetAgentHealth("strategy")
	require.True(t, ok)
	assert.InDelta(t, 150, health.AvgResponseMs, 0.01)
	assert.Equal(t, int64(2), health.TotalOps)
}

func TestResetAgentHealthClearsCounters(t *testing.T) {
	h := NewHealthMonitor(time.Minute)
	h.InitializeAgent("risk")
	h.RecordError("risk")
	h.RecordError("risk")

	h.ResetAgentHealth("risk")
	health, ok := h.GetAgentHealth("risk")
	require.True(t, ok)
	assert.True(t, health.IsHealthy)
	assert.Equal(t, int64(0), health.ErrorCount)
}
