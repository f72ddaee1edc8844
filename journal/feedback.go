package journal

import (
	"fmt"
	"time"

	"tradecore/logger"
	"tradecore/types"
)

// FeedbackDecision is the audit row the feedback loop writes for every
// cycle that finds underperformance: once before the recommended action
// runs and again once it has been executed. A cycle that finds nothing
// writes no row.
type FeedbackDecision struct {
	ID              int64
	DecisionType    string
	StrategyName    string
	Symbol          string
	Analysis        Underperformance
	ActionTaken     string
	Executed        bool
	ExecutionResult string
	ActionParams    map[string]interface{}
	DecisionTime    time.Time
	ExecutedAt      time.Time
}

// BudgetStore is the seam the feedback loop needs to disable a strategy.
type BudgetStore interface {
	GetBudget(strategyName, symbol string) (*types.StrategyBudget, error)
	SaveBudget(*types.StrategyBudget) error
}

// OptimizationChecker reports whether an optimization job is already
// pending or running for a strategy/symbol — optimization job creation
// itself is out of scope; this loop only avoids recommending a duplicate.
type OptimizationChecker interface {
	HasActiveJob(strategyName, symbol string) (jobID int64, found bool)
}

type FeedbackLoop struct {
	Analyzer    *Analyzer
	Budgets     BudgetStore
	Optim       OptimizationChecker
	saveDecision func(*FeedbackDecision) error
}

func NewFeedbackLoop(analyzer *Analyzer, budgets BudgetStore, optim OptimizationChecker, saveDecision func(*FeedbackDecision) error) *FeedbackLoop {
	return &FeedbackLoop{Analyzer: analyzer, Budgets: budgets, Optim: optim, saveDecision: saveDecision}
}

// RunFeedbackCycle analyzes one strategy/symbol pair and, if it's
// underperforming, logs a decision and executes the recommended action.
func (f *FeedbackLoop) RunFeedbackCycle(strategyName, symbol string) map[string]interface{} {
	logger.Infof("running feedback cycle for %s on %s", strategyName, symbol)

	under := f.Analyzer.DetectUnderperformance(strategyName, symbol)
	if !under.Underperforming {
		return map[string]interface{}{"action": "none", "reason": "performance within acceptable range"}
	}

	decision := &FeedbackDecision{
		DecisionType: under.Recommendation,
		StrategyName: strategyName,
		Symbol:       symbol,
		Analysis:     under,
		ActionTaken:  fmt.Sprintf("recommendation: %s", under.Recommendation),
		DecisionTime: time.Now().UTC(),
	}
	if f.saveDecision != nil {
		_ = f.saveDecision(decision)
	}

	result := f.executeAction(decision, strategyName, symbol, under.Recommendation)

	return map[string]interface{}{
		"action":            under.Recommendation,
		"execution_result":  result,
		"underperformance":  under,
	}
}

func (f *FeedbackLoop) executeAction(decision *FeedbackDecision, strategyName, symbol, recommendation string) string {
	var result string
	switch recommendation {
	case "trigger_optimization":
		result = f.handleTriggerOptimization(decision, strategyName, symbol)
	case "disable_strategy":
		result = f.handleDisableStrategy(decision, strategyName, symbol)
	case "monitor_closely":
		result = f.handleMonitorClosely(decision)
	default:
		result = "unknown recommendation: " + recommendation
	}
	decision.Executed = true
	decision.ExecutedAt = time.Now().UTC()
	decision.ExecutionResult = result
	if f.saveDecision != nil {
		_ = f.saveDecision(decision)
	}
	return result
}

func (f *FeedbackLoop) handleTriggerOptimization(decision *FeedbackDecision, strategyName, symbol string) string {
	if jobID, found := f.Optim.HasActiveJob(strategyName, symbol); found {
		return fmt.Sprintf("optimization already in progress (job %d)", jobID)
	}
	decision.ActionParams = map[string]interface{}{
		"recommended_action": "create_optimization_job",
		"strategy_name":      strategyName,
		"symbol":             symbol,
	}
	return fmt.Sprintf("optimization recommended for %s on %s; create a job via /api/v1/optimization/jobs", strategyName, symbol)
}

func (f *FeedbackLoop) handleDisableStrategy(decision *FeedbackDecision, strategyName, symbol string) string {
	budget, err := f.Budgets.GetBudget(strategyName, symbol)
	if err != nil || budget == nil {
		return fmt.Sprintf("risk budget not found for %s on %s", strategyName, symbol)
	}
	budget.IsEnabled = false
	budget.DisabledReason = "feedback loop: underperformance detected"
	budget.LastUpdated = time.Now().UTC()
	_ = f.Budgets.SaveBudget(budget)
	logger.Warnf("disabled %s on %s due to underperformance", strategyName, symbol)
	return fmt.Sprintf("strategy %s disabled for %s", strategyName, symbol)
}

func (f *FeedbackLoop) handleMonitorClosely(decision *FeedbackDecision) string {
	decision.ActionParams = map[string]interface{}{"action_taken": "monitor_closely"}
	return "monitoring enabled - no immediate action taken"
}

// RunBatchFeedback runs a feedback cycle for every (strategy, symbol) pair.
func (f *FeedbackLoop) RunBatchFeedback(pairs [][2]string) map[string]interface{} {
	results := make(map[string]interface{}, len(pairs))
	actionsTaken := 0
	for _, pair := range pairs {
		r := f.RunFeedbackCycle(pair[0], pair[1])
		results[pair[0]+":"+pair[1]] = r
		if r["action"] != "none" {
			actionsTaken++
		}
	}
	return map[string]interface{}{
		"total_analyzed": len(pairs),
		"actions_taken":  actionsTaken,
		"details":        results,
	}
}
