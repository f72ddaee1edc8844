package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tradecore/types"
)

func baseSignal() types.Signal {
	return types.Signal{
		StrategyName: "trend_follow",
		Symbol:       "EURUSD",
		Side:         types.SideLong,
		EntryPrice:   decimal.NewFromFloat(1.1000),
		StopLoss:     decimal.NewFromFloat(1.0950),
		TakeProfit:   decimal.NewFromFloat(1.1100),
		RiskPercent:  decimal.NewFromFloat(1.0),
	}
}

func baseAccount() types.AccountRiskState {
	return types.AccountRiskState{AccountID: "acct-1", Balance: decimal.NewFromInt(10000)}
}

func baseBudget() types.StrategyBudget {
	return types.StrategyBudget{StrategyName: "trend_follow", Symbol: "EURUSD", IsEnabled: true}
}

func TestValidateApprovesCleanSignal(t *testing.T) {
	v := NewValidator(DefaultHardCaps())
	result := v.Validate(baseSignal(), baseAccount(), baseBudget())
	assert.True(t, result.Approved)
	assert.Nil(t, result.Rejection)
	assert.False(t, result.TriggeredHalt)
	// size = (10000 * 1.0/100) / 0.0050 = 100/0.005 = 20000, capped at MaxPositionSizeLots
	assert.True(t, result.AdjustedSize.Equal(DefaultHardCaps().MaxPositionSizeLots))
}

func TestValidateRejectsWhenAlreadyShutdown(t *testing.T) {
	v := NewValidator(DefaultHardCaps())
	account := baseAccount()
	account.EmergencyShutdown = true
	account.EmergencyReason = "prior drawdown breach"

	result := v.Validate(baseSignal(), account, baseBudget())
	assert.False(t, result.Approved)
	assert.Equal(t, "emergency_shutdown", result.Rejection.Check)
	assert.Equal(t, types.SeverityEmergency, result.Rejection.Severity)
	assert.False(t, result.TriggeredHalt, "already-shutdown accounts don't re-trigger the halt")
}

func TestValidateTripsEmergencyShutdownOnDrawdownBreach(t *testing.T) {
	caps := DefaultHardCaps()
	v := NewValidator(caps)
	account := baseAccount()
	account.DrawdownPercent = caps.EmergencyDrawdownPercent

	result := v.Validate(baseSignal(), account, baseBudget())
	assert.False(t, result.Approved)
	assert.True(t, result.TriggeredHalt)
	assert.Equal(t, "emergency_drawdown", result.Rejection.Check)
}

func TestValidateChecksStopAtFirstRejection(t *testing.T) {
	caps := DefaultHardCaps()
	v := NewValidator(caps)
	account := baseAccount()
	account.OpenPositions = caps.MaxOpenPositions
	account.TradesToday = caps.MaxTradesPerDay // would also fail, but max_open_positions runs first

	result := v.Validate(baseSignal(), account, baseBudget())
	assert.False(t, result.Approved)
	assert.Equal(t, "max_open_positions", result.Rejection.Check)
}

func TestValidateRejectsZeroRiskPerUnit(t *testing.T) {
	v := NewValidator(DefaultHardCaps())
	sig := baseSignal()
	sig.StopLoss = sig.EntryPrice

	result := v.Validate(sig, baseAccount(), baseBudget())
	assert.False(t, result.Approved)
	assert.Equal(t, "position_size", result.Rejection.Check)
	assert.Equal(t, types.SeverityCritical, result.Rejection.Severity)
}

func TestValidateRejectsZeroComputedSize(t *testing.T) {
	v := NewValidator(DefaultHardCaps())
	sig := baseSignal()
	sig.RiskPercent = decimal.Zero

	account := baseAccount()
	result := v.Validate(sig, account, baseBudget())
	assert.False(t, result.Approved)
	assert.Equal(t, "position_size", result.Rejection.Check)
}

func TestValidateRejectsDisabledStrategy(t *testing.T) {
	v := NewValidator(DefaultHardCaps())
	budget := baseBudget()
	budget.IsEnabled = false
	budget.DisabledReason = "five consecutive losses"

	result := v.Validate(baseSignal(), baseAccount(), budget)
	assert.False(t, result.Approved)
	assert.Equal(t, "strategy_disabled", result.Rejection.Check)
	assert.Equal(t, types.SeverityWarning, result.Rejection.Severity)
}

func TestValidateRejectsPoorRiskReward(t *testing.T) {
	v := NewValidator(DefaultHardCaps())
	sig := baseSignal()
	sig.TakeProfit = decimal.NewFromFloat(1.1010) // reward 10 pips vs 50 pip risk

	result := v.Validate(sig, baseAccount(), baseBudget())
	assert.False(t, result.Approved)
	assert.Equal(t, "min_risk_reward_ratio", result.Rejection.Check)
	assert.Equal(t, types.SeverityWarning, result.Rejection.Severity)
}

func TestValidateCapsComputedSizeAtMax(t *testing.T) {
	caps := DefaultHardCaps()
	v := NewValidator(caps)
	sig := baseSignal()
	sig.RiskPercent = caps.MaxRiskPerTradePercent

	account := baseAccount()
	account.Balance = decimal.NewFromInt(1000000) // large enough that raw size would exceed the cap

	result := v.Validate(sig, account, baseBudget())
	assert.True(t, result.Approved)
	assert.True(t, result.AdjustedSize.Equal(caps.MaxPositionSizeLots))
}

func TestValidateOrdersStrategyBudgetBeforeDailyLoss(t *testing.T) {
	caps := DefaultHardCaps()
	v := NewValidator(caps)
	account := baseAccount()
	account.DailyLossPercent = caps.MaxDailyLossPercent // would also fail check 9
	budget := baseBudget()
	budget.IsEnabled = false

	result := v.Validate(baseSignal(), account, budget)
	assert.False(t, result.Approved)
	assert.Equal(t, "strategy_disabled", result.Rejection.Check, "check 8 runs before check 9")
}
