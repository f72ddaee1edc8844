// Package coordination implements the Shared Cycle State, the Health
// Monitor, and the Coordination Pipeline that drives one trading cycle
// through its phases.
package coordination

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradecore/apperr"
	"tradecore/types"
)

// StateManager owns one CycleState at a time and enforces the access
// control rules: only the supervisor may transition phases, and a
// non-supervisor agent may only write shared_data keys prefixed with
// its own name.
type StateManager struct {
	mu      sync.Mutex
	current *types.CycleState
	history []*types.CycleState
}

func NewStateManager() *StateManager {
	return &StateManager{}
}

func newCycleID(now time.Time) string {
	return fmt.Sprintf("cycle_%s_%s", now.UTC().Format("20060102_150405"), uuid.NewString()[:8])
}

// CreateCycle starts a new cycle, replacing any prior current cycle
// (the caller is expected to have completed it first).
func (s *StateManager) CreateCycle(symbol string, now time.Time) *types.CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.history = append(s.history, s.current)
	}
	s.current = &types.CycleState{
		CycleID: newCycleID(now),
		Symbol:  symbol,
		Phase:   types.PhaseInitializing,
		ActiveAgents: map[string]types.AgentStatus{
			"supervisor": types.AgentActive,
			"strategy":   types.AgentPending,
			"risk":       types.AgentPending,
			"execution":  types.AgentPending,
		},
		SharedData: make(map[string]interface{}),
		StartedAt:  now,
	}
	return s.current
}

func (s *StateManager) GetCurrentCycle() *types.CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// GetCycle looks up a cycle by id across both the live cycle and history,
// so a halted or completed cycle superseded by a newer one is still
// reachable by id rather than disappearing once it stops being current.
func (s *StateManager) GetCycle(id string) *types.CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.CycleID == id {
		return s.current
	}
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].CycleID == id {
			return s.history[i]
		}
	}
	return nil
}

// TransitionPhase moves the current cycle to a new phase. Only the
// supervisor may call this, and never once a halt has been requested.
func (s *StateManager) TransitionPhase(agent string, phase types.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return apperr.NotFound("no active cycle")
	}
	if agent != "supervisor" {
		return apperr.Validation("only supervisor may transition phases, got %q", agent)
	}
	if s.current.HaltRequested {
		return apperr.ModeBlocked("cycle %s is halted: %s", s.current.CycleID, s.current.HaltReason)
	}
	s.current.Phase = phase
	if status, ok := s.current.ActiveAgents[agent]; ok {
		_ = status
	}
	return nil
}

// WriteSharedData enforces that a non-supervisor agent can only write
// keys it owns, i.e. keys starting with "<agent>_".
func (s *StateManager) WriteSharedData(agent, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return apperr.NotFound("no active cycle")
	}
	if agent != "supervisor" && !strings.HasPrefix(key, agent+"_") {
		return apperr.Validation("agent %q cannot write key %q", agent, key)
	}
	s.current.SharedData[key] = value
	return nil
}

func (s *StateManager) ReadSharedData(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	v, ok := s.current.SharedData[key]
	return v, ok
}

func (s *StateManager) ReadAllSharedData() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.current.SharedData))
	for k, v := range s.current.SharedData {
		out[k] = v
	}
	return out
}

// RequestHalt halts the current cycle. Any agent may request a halt.
func (s *StateManager) RequestHalt(agent, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current.HaltRequested = true
	s.current.HaltReason = fmt.Sprintf("%s: %s", agent, reason)
	s.current.Phase = types.PhaseHalted
}

// CompleteCycle finalizes the current cycle as COMPLETED (or FAILED if
// it recorded errors).
func (s *StateManager) CompleteCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	if len(s.current.Errors) > 0 {
		s.current.Phase = types.PhaseFailed
	} else if s.current.Phase != types.PhaseHalted {
		s.current.Phase = types.PhaseCompleted
	}
	s.current.CompletedAt = time.Now().UTC()
	s.history = append(s.history, s.current)
}

func (s *StateManager) RecentCycles(limit int) []*types.CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]*types.CycleState, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}
