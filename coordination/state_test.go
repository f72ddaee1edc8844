package coordination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/types"
)

func TestCreateCycleInitializesAgentsPending(t *testing.T) {
	s := NewStateManager()
	cycle := s.CreateCycle("EURUSD", time.Now())

	assert.Equal(t, types.PhaseInitializing, cycle.Phase)
	assert.Equal(t, types.AgentActive, cycle.ActiveAgents["supervisor"])
	assert.Equal(t, types.AgentPending, cycle.ActiveAgents["strategy"])
}

func TestTransitionPhaseRequiresSupervisor(t *testing.T) {
	s := NewStateManager()
	s.CreateCycle("EURUSD", time.Now())

	err := s.TransitionPhase("strategy", types.PhaseStrategyAnalysis)
	assert.Error(t, err)

	err = s.TransitionPhase("supervisor", types.PhaseStrategyAnalysis)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseStrategyAnalysis, s.GetCurrentCycle().Phase)
}

func TestTransitionPhaseBlockedAfterHalt(t *testing.T) {
	s := NewStateManager()
	s.CreateCycle("EURUSD", time.Now())
	s.RequestHalt("risk", "drawdown breach")

	err := s.TransitionPhase("supervisor", types.PhaseExecution)
	assert.Error(t, err)
}

func TestWriteSharedDataEnforcesAgentOwnedKeys(t *testing.T) {
	s := NewStateManager()
	s.CreateCycle("EURUSD", time.Now())

	assert.Error(t, s.WriteSharedData("risk", "strategy_foo", 1))
	assert.NoError(t, s.WriteSharedData("risk", "risk_drawdown", 1))
	assert.NoError(t, s.WriteSharedData("supervisor", "symbol", "EURUSD"))

	v, ok := s.ReadSharedData("risk_drawdown")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCompleteCycleMarksFailedOnErrors(t *testing.T) {
	s := NewStateManager()
	cycle := s.CreateCycle("EURUSD", time.Now())
	cycle.Errors = append(cycle.Errors, "boom")

	s.CompleteCycle()
	assert.Equal(t, types.PhaseFailed, s.GetCurrentCycle().Phase)
}

func TestGetCycleFindsHaltedCycleAfterSupersededByNewOne(t *testing.T) {
	s := NewStateManager()
	halted := s.CreateCycle("EURUSD", time.Now())
	s.RequestHalt("risk", "drawdown breach")
	haltedID := halted.CycleID

	s.CreateCycle("GBPUSD", time.Now()) // supersedes the halted cycle

	found := s.GetCycle(haltedID)
	require.NotNil(t, found, "a halted cycle stays reachable by id even after a new cycle replaces it as current")
	assert.Equal(t, types.PhaseHalted, found.Phase)
}

func TestGetCycleFindsCurrentCycle(t *testing.T) {
	s := NewStateManager()
	cycle := s.CreateCycle("EURUSD", time.Now())

	found := s.GetCycle(cycle.CycleID)
	require.NotNil(t, found)
	assert.Equal(t, cycle.CycleID, found.CycleID)
}

func TestGetCycleReturnsNilForUnknownID(t *testing.T) {
	s := NewStateManager()
	s.CreateCycle("EURUSD", time.Now())
	assert.Nil(t, s.GetCycle("does-not-exist"))
}

func TestRecentCyclesReturnsMostRecentCycle(t *testing.T) {
	s := NewStateManager()
	s.CreateCycle("EURUSD", time.Now())
	s.CompleteCycle()
	s.CreateCycle("GBPUSD", time.Now())
	s.CompleteCycle()

	recent := s.RecentCycles(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "GBPUSD", recent[0].Symbol)
}
