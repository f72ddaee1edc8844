package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"tradecore/logger"
	"tradecore/types"
)

// Monitor owns the rolling AccountRiskState/StrategyBudget updates that
// Validator reads. It is the only component allowed to mutate them.
type Monitor struct {
	caps types.HardCaps
	log  func(format string, args ...interface{})
}

func NewMonitor(caps types.HardCaps) *Monitor {
	return &Monitor{caps: caps, log: logger.Infof}
}

// UpdateAccountState recomputes drawdown, daily PnL and trade counters
// from the account's current balance/equity and today's closed trades.
func (m *Monitor) UpdateAccountState(state *types.AccountRiskState, closedToday []types.Position, now time.Time) {
	if state.PeakBalance.LessThan(state.Equity) {
		state.PeakBalance = state.Equity
	}
	if state.PeakBalance.IsPositive() {
		state.DrawdownPercent = state.PeakBalance.Sub(state.Equity).
			Div(state.PeakBalance).Mul(decimal.NewFromInt(100))
	}

	var dailyPnL decimal.Decimal
	tradesToday := 0
	tradesThisHour := 0
	for _, p := range closedToday {
		dailyPnL = dailyPnL.Add(p.RealizedPnL)
		tradesToday++
		if now.Sub(p.ExitTime) < time.Hour {
			tradesThisHour++
		}
	}
	state.DailyPnL = dailyPnL
	state.TradesToday = tradesToday
	state.TradesThisHour = tradesThisHour
	if state.Balance.IsPositive() && dailyPnL.IsNegative() {
		state.DailyLossPercent = dailyPnL.Abs().Div(state.Balance).Mul(decimal.NewFromInt(100))
	} else {
		state.DailyLossPercent = decimal.Zero
	}

	if state.DrawdownPercent.GreaterThanOrEqual(m.caps.EmergencyDrawdownPercent) && !state.EmergencyShutdown {
		m.TriggerEmergencyShutdown(state, "drawdown threshold breached")
	}
}

// TriggerEmergencyShutdown halts an account until explicitly reset.
func (m *Monitor) TriggerEmergencyShutdown(state *types.AccountRiskState, reason string) {
	state.EmergencyShutdown = true
	state.EmergencyReason = reason
	m.log("EMERGENCY SHUTDOWN on account %s: %s", state.AccountID, reason)
}

// ResetEmergencyShutdown clears the shutdown flag. Operator-triggered only.
func (m *Monitor) ResetEmergencyShutdown(state *types.AccountRiskState) {
	state.EmergencyShutdown = false
	state.EmergencyReason = ""
}

// ResetDailyMetrics zeroes the counters that roll over at midnight UTC.
func (m *Monitor) ResetDailyMetrics(state *types.AccountRiskState, budgets []*types.StrategyBudget, now time.Time) {
	state.TradesToday = 0
	state.DailyPnL = decimal.Zero
	state.DailyLossPercent = decimal.Zero
	state.DayResetAt = now
	for _, b := range budgets {
		b.DailyPnL = decimal.Zero
	}
}

// UpdateStrategyBudget applies the outcome of a closed trade to the
// strategy's consecutive-loss counter, auto-disabling the strategy once
// the loss streak reaches MaxConsecutiveLosses.
func (m *Monitor) UpdateStrategyBudget(budget *types.StrategyBudget, pnl decimal.Decimal, now time.Time) {
	budget.DailyPnL = budget.DailyPnL.Add(pnl)
	budget.LastUpdated = now

	if pnl.IsNegative() {
		budget.ConsecutiveLosses++
		if budget.MaxConsecutiveLosses == 0 {
			budget.MaxConsecutiveLosses = MaxConsecutiveLosses
		}
		if budget.ConsecutiveLosses >= budget.MaxConsecutiveLosses {
			budget.IsEnabled = false
			budget.DisabledReason = formatConsecutiveLosses(budget.ConsecutiveLosses)
		}
	} else {
		budget.ConsecutiveLosses = 0
	}
}

// EnableStrategy re-enables a disabled strategy and clears its loss streak.
func (m *Monitor) EnableStrategy(budget *types.StrategyBudget) {
	budget.IsEnabled = true
	budget.DisabledReason = ""
	budget.ConsecutiveLosses = 0
}

func formatConsecutiveLosses(n int) string {
	if n == 1 {
		return "1 consecutive loss"
	}
	return decimal.NewFromInt(int64(n)).String() + " consecutive losses"
}
