package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/bus"
	"tradecore/types"
)

func newTestPipeline() (*Pipeline, *StateManager) {
	state := NewStateManager()
	health := NewHealthMonitor(time.Minute)
	b := bus.NewBus(nil)
	return NewPipeline(state, health, b, time.Minute), state
}

func TestExecuteCycleRunsAllPhasesToCompletion(t *testing.T) {
	p, _ := newTestPipeline()
	p.Strategy = func(ctx context.Context, c *types.CycleState) error { return nil }
	p.Risk = func(ctx context.Context, c *types.CycleState) error { return nil }
	p.Execution = func(ctx context.Context, c *types.CycleState) error { return nil }

	cycle := p.ExecuteCycle(context.Background(), "EURUSD", []string{"trend_follow"}, "10000", "10000", types.ModeGuide)

	assert.Equal(t, types.PhaseCompleted, cycle.Phase)
	assert.False(t, cycle.HaltRequested)
	assert.Equal(t, types.AgentDone, cycle.ActiveAgents["strategy"])
	assert.Equal(t, types.AgentDone, cycle.ActiveAgents["risk"])
	assert.Equal(t, types.AgentDone, cycle.ActiveAgents["execution"])
}

func TestExecuteCycleStopsAtFirstPhaseFailure(t *testing.T) {
	p, _ := newTestPipeline()
	executionRan := false
	p.Strategy = func(ctx context.Context, c *types.CycleState) error { return nil }
	p.Risk = func(ctx context.Context, c *types.CycleState) error { return assert.AnError }
	p.Execution = func(ctx context.Context, c *types.CycleState) error { executionRan = true; return nil }

	cycle := p.ExecuteCycle(context.Background(), "EURUSD", nil, "10000", "10000", types.ModeGuide)

	assert.Equal(t, types.PhaseFailed, cycle.Phase)
	assert.Equal(t, types.AgentDone, cycle.ActiveAgents["strategy"])
	assert.Equal(t, types.AgentFailed, cycle.ActiveAgents["risk"])
	assert.False(t, executionRan, "a failed phase short-circuits the rest of the cycle")
	require.NotEmpty(t, cycle.Errors)
}

func TestExecuteCycleHaltsWhenAgentsUnhealthy(t *testing.T) {
	state := NewStateManager()
	health := NewHealthMonitor(time.Minute)
	health.InitializeAgent("strategy")
	health.RecordError("strategy")
	health.RecordError("strategy") // 100% error rate -> unhealthy
	b := bus.NewBus(nil)
	p := NewPipeline(state, health, b, time.Minute)
	strategyRan := false
	p.Strategy = func(ctx context.Context, c *types.CycleState) error { strategyRan = true; return nil }

	cycle := p.ExecuteCycle(context.Background(), "EURUSD", nil, "10000", "10000", types.ModeGuide)

	assert.True(t, cycle.HaltRequested)
	assert.False(t, strategyRan)
}

func TestHaltCycleBroadcastsToOtherAgents(t *testing.T) {
	p, state := newTestPipeline()
	state.CreateCycle("EURUSD", time.Now())

	p.HaltCycle("risk", "drawdown breach")

	msgs := p.Bus.Receive("execution", 10, time.Now())
	require.Len(t, msgs, 1)
	assert.Equal(t, types.MessageHalt, msgs[0].Type)
	assert.True(t, state.GetCurrentCycle().HaltRequested)
}
