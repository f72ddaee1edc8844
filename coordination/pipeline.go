package coordination

import (
	"context"
	"sync"
	"time"

	"tradecore/bus"
	"tradecore/logger"
	"tradecore/types"
)

// PhaseFunc runs one agent's work for the current cycle and reports
// whether it succeeded. Supervisor wires one PhaseFunc per agent.
type PhaseFunc func(ctx context.Context, cycle *types.CycleState) error

// allAgents is every agent the pipeline registers with the Health Monitor.
var allAgents = []string{"supervisor", "strategy", "risk", "execution"}

// Pipeline drives one trading cycle through INITIALIZING ->
// STRATEGY_ANALYSIS -> RISK_VALIDATION -> EXECUTION -> COMPLETED,
// branching to HALTED/FAILED on error or explicit halt request.
type Pipeline struct {
	State   *StateManager
	Health  *HealthMonitor
	Bus     *bus.Bus
	Message time.Duration // per-phase message expiry

	Strategy  PhaseFunc
	Risk      PhaseFunc
	Execution PhaseFunc

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPipeline(state *StateManager, health *HealthMonitor, b *bus.Bus, messageTTL time.Duration) *Pipeline {
	for _, a := range allAgents {
		health.InitializeAgent(a)
	}
	return &Pipeline{State: state, Health: health, Bus: b, Message: messageTTL, stopCh: make(chan struct{})}
}

// ExecuteCycle runs one full cycle for symbol, returning the final
// CycleState. It halts immediately if any agent is unhealthy.
func (p *Pipeline) ExecuteCycle(ctx context.Context, symbol string, strategies []string, balance, peakBalance interface{}, mode types.Mode) *types.CycleState {
	now := time.Now().UTC()
	cycle := p.State.CreateCycle(symbol, now)

	if healthy, unhealthy := p.Health.CheckAllAgents(now); !healthy {
		p.State.RequestHalt("supervisor", "unhealthy agents: "+joinStrings(unhealthy))
		logger.Warnf("cycle %s halted: unhealthy agents %v", cycle.CycleID, unhealthy)
		p.State.CompleteCycle()
		return cycle
	}

	_ = p.State.WriteSharedData("supervisor", "symbol", symbol)
	_ = p.State.WriteSharedData("supervisor", "strategies", strategies)
	_ = p.State.WriteSharedData("supervisor", "account_balance", balance)
	_ = p.State.WriteSharedData("supervisor", "peak_balance", peakBalance)
	_ = p.State.WriteSharedData("supervisor", "mode", mode)

	phases := []struct {
		name  string
		phase types.Phase
		fn    PhaseFunc
	}{
		{"strategy", types.PhaseStrategyAnalysis, p.Strategy},
		{"risk", types.PhaseRiskValidation, p.Risk},
		{"execution", types.PhaseExecution, p.Execution},
	}

	for _, ph := range phases {
		if ph.fn == nil {
			continue
		}
		if err := p.runPhase(ctx, cycle, ph.name, ph.phase, ph.fn); err != nil {
			cycle.Errors = append(cycle.Errors, err.Error())
			p.Health.RecordError(ph.name)
			break
		}
		if cycle.HaltRequested {
			break
		}
	}

	p.State.CompleteCycle()
	return cycle
}

func (p *Pipeline) runPhase(ctx context.Context, cycle *types.CycleState, agent string, phase types.Phase, fn PhaseFunc) error {
	if err := p.State.TransitionPhase("supervisor", phase); err != nil {
		return err
	}
	cycle.ActiveAgents[agent] = types.AgentActive
	p.Bus.Send(cycle.CycleID, "supervisor", agent, types.MessageCommand, types.PriorityHigh,
		map[string]interface{}{"phase": string(phase)}, p.Message)

	start := time.Now()
	err := fn(ctx, cycle)
	elapsed := float64(time.Since(start).Milliseconds())
	p.Health.Heartbeat(agent, elapsed, time.Now().UTC())
	if err != nil {
		cycle.ActiveAgents[agent] = types.AgentFailed
		p.Health.RecordError(agent)
		return err
	}
	cycle.ActiveAgents[agent] = types.AgentDone
	p.Health.RecordSuccess(agent)
	return nil
}

// HaltCycle halts the current cycle and broadcasts the halt to every other agent.
func (p *Pipeline) HaltCycle(agent, reason string) {
	p.State.RequestHalt(agent, reason)
	cycle := p.State.GetCurrentCycle()
	if cycle != nil {
		p.Bus.BroadcastHalt(cycle.CycleID, agent, reason)
	}
}

func (p *Pipeline) GetCycleStatus() *types.CycleState {
	return p.State.GetCurrentCycle()
}

// StartHeartbeatLoop runs a background goroutine that heartbeats the
// supervisor agent every interval until Stop is called.
func (p *Pipeline) StartHeartbeatLoop(interval time.Duration) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Health.Heartbeat("supervisor", 0, time.Now().UTC())
			case <-p.stopCh:
				return
			}
		}
	}()
}

func (p *Pipeline) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
