package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tradecore/types"
)

func TestUpdateAccountStateTracksDrawdownAndDailyPnL(t *testing.T) {
	m := NewMonitor(DefaultHardCaps())
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	state := &types.AccountRiskState{
		AccountID:   "acct-1",
		Balance:     decimal.NewFromInt(10000),
		Equity:      decimal.NewFromInt(9000),
		PeakBalance: decimal.NewFromInt(10000),
	}
	closed := []types.Position{
		{RealizedPnL: decimal.NewFromInt(-500), ExitTime: now.Add(-10 * time.Minute)},
		{RealizedPnL: decimal.NewFromInt(-500), ExitTime: now.Add(-2 * time.Hour)},
	}

	m.UpdateAccountState(state, closed, now)

	assert.True(t, state.DrawdownPercent.Equal(decimal.NewFromInt(10)))
	assert.True(t, state.DailyPnL.Equal(decimal.NewFromInt(-1000)))
	assert.Equal(t, 2, state.TradesToday)
	assert.Equal(t, 1, state.TradesThisHour, "only the trade within the last hour counts")
	assert.True(t, state.DailyLossPercent.Equal(decimal.NewFromInt(10)))
}

func TestUpdateAccountStateAutoTripsShutdownOnBreach(t *testing.T) {
	caps := DefaultHardCaps()
	m := NewMonitor(caps)
	state := &types.AccountRiskState{
		AccountID:   "acct-1",
		Balance:     decimal.NewFromInt(10000),
		Equity:      decimal.NewFromInt(8000),
		PeakBalance: decimal.NewFromInt(10000),
	}
	m.UpdateAccountState(state, nil, time.Now())
	assert.True(t, state.EmergencyShutdown)
	assert.NotEmpty(t, state.EmergencyReason)
}

func TestUpdateStrategyBudgetAutoDisablesOnLossStreak(t *testing.T) {
	m := NewMonitor(DefaultHardCaps())
	budget := &types.StrategyBudget{StrategyName: "s", Symbol: "EURUSD", IsEnabled: true}

	for i := 0; i < MaxConsecutiveLosses-1; i++ {
		m.UpdateStrategyBudget(budget, decimal.NewFromInt(-10), time.Now())
		assert.True(t, budget.IsEnabled)
	}
	m.UpdateStrategyBudget(budget, decimal.NewFromInt(-10), time.Now())
	assert.False(t, budget.IsEnabled)
	assert.NotEmpty(t, budget.DisabledReason)

	m.UpdateStrategyBudget(budget, decimal.NewFromInt(50), time.Now())
	assert.Equal(t, 0, budget.ConsecutiveLosses, "a winning trade resets the streak, but doesn't re-enable")
	assert.False(t, budget.IsEnabled)
}

func TestEnableStrategyClearsDisableState(t *testing.T) {
	m := NewMonitor(DefaultHardCaps())
	budget := &types.StrategyBudget{IsEnabled: false, DisabledReason: "loss streak", ConsecutiveLosses: 5}
	m.EnableStrategy(budget)
	assert.True(t, budget.IsEnabled)
	assert.Empty(t, budget.DisabledReason)
	assert.Equal(t, 0, budget.ConsecutiveLosses)
}
