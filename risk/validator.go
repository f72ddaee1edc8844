// Package risk implements the admission pipeline and rolling account
// state that stand between every trade signal and the broker.
//
// Emergency shutdown is scoped per-account: a drawdown breach on one
// account never halts trading on another.
package risk

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/types"
)

// RejectionReason explains why validate_trade rejected a signal. It
// implements error so callers can wrap it straight into apperr.
type RejectionReason struct {
	Check    string
	Severity types.Severity
	Message  string
}

func (r RejectionReason) Error() string {
	return fmt.Sprintf("risk[%s/%s]: %s", r.Check, r.Severity, r.Message)
}

// ValidationResult is the outcome of one Validate call. Checks stop at
// the first rejection — later checks never run, since an EMERGENCY or
// CRITICAL rejection already makes the remaining checks moot.
type ValidationResult struct {
	Approved      bool
	Signal        types.Signal
	Rejection     *RejectionReason
	AdjustedSize  decimal.Decimal
	TriggeredHalt bool
}

// Validator enforces the hard risk ceilings. It cannot be loosened by a
// strategy or by Settings — Settings may only narrow it further with
// soft limits.
type Validator struct {
	Caps types.HardCaps
}

func NewValidator(caps types.HardCaps) *Validator {
	return &Validator{Caps: caps}
}

// Validate runs the nine ordered checks against one signal. account and
// budget are read-only snapshots; Monitor owns writing them back.
func (v *Validator) Validate(
	signal types.Signal,
	account types.AccountRiskState,
	budget types.StrategyBudget,
) ValidationResult {
	result := ValidationResult{Approved: true, Signal: signal, AdjustedSize: signal.PositionSize}

	// CHECK 1: emergency shutdown already active on this account.
	if account.EmergencyShutdown {
		return v.reject(result, "emergency_shutdown", types.SeverityEmergency,
			fmt.Sprintf("account %s is under emergency shutdown: %s", account.AccountID, account.EmergencyReason))
	}

	// CHECK 2: drawdown vs the emergency threshold. A breach here both
	// rejects the signal and trips the shutdown for every future signal
	// on this account until explicitly reset.
	if account.DrawdownPercent.GreaterThanOrEqual(v.Caps.EmergencyDrawdownPercent) {
		result = v.reject(result, "emergency_drawdown", types.SeverityEmergency,
			fmt.Sprintf("drawdown %s%% >= emergency threshold %s%%", account.DrawdownPercent, v.Caps.EmergencyDrawdownPercent))
		result.TriggeredHalt = true
		return result
	}

	// CHECK 3: max open positions.
	if account.OpenPositions >= v.Caps.MaxOpenPositions {
		return v.reject(result, "max_open_positions", types.SeverityCritical,
			fmt.Sprintf("open positions %d >= max %d", account.OpenPositions, v.Caps.MaxOpenPositions))
	}

	// CHECK 4: daily trade count limit.
	if account.TradesToday >= v.Caps.MaxTradesPerDay {
		return v.reject(result, "max_trades_per_day", types.SeverityWarning,
			fmt.Sprintf("trades today %d >= max %d", account.TradesToday, v.Caps.MaxTradesPerDay))
	}

	// CHECK 5: hourly trade count limit.
	if account.TradesThisHour >= v.Caps.MaxTradesPerHour {
		return v.reject(result, "max_trades_per_hour", types.SeverityWarning,
			fmt.Sprintf("trades this hour %d >= max %d", account.TradesThisHour, v.Caps.MaxTradesPerHour))
	}

	// CHECK 6: position size, computed from risk percent rather than
	// trusting the caller-supplied size. size = min(max_position_size,
	// (balance * min(risk_pct, max_risk_per_trade_pct) / 100) / |entry - stop_loss|).
	// A zero risk-per-unit (entry == stop_loss) or non-positive size is a
	// hard reject, never a clamp.
	riskPerUnit := signal.EntryPrice.Sub(signal.StopLoss).Abs()
	if !riskPerUnit.IsPositive() {
		return v.reject(result, "position_size", types.SeverityCritical,
			"risk per unit is zero: entry price equals stop loss")
	}
	riskPct := decimal.Min(signal.RiskPercent, v.Caps.MaxRiskPerTradePercent)
	riskAmount := account.Balance.Mul(riskPct).Div(decimal.NewFromInt(100))
	size := decimal.Min(v.Caps.MaxPositionSizeLots, riskAmount.Div(riskPerUnit)).RoundBank(2)
	if !size.IsPositive() {
		return v.reject(result, "position_size", types.SeverityCritical,
			fmt.Sprintf("computed position size %s is not positive", size))
	}
	result.AdjustedSize = size

	// CHECK 7: risk/reward ratio.
	reward := signal.TakeProfit.Sub(signal.EntryPrice).Abs()
	rr := reward.Div(riskPerUnit)
	if rr.LessThan(v.Caps.MinRiskRewardRatio) {
		return v.reject(result, "min_risk_reward_ratio", types.SeverityWarning,
			fmt.Sprintf("risk/reward %s < min %s", rr, v.Caps.MinRiskRewardRatio))
	}

	// CHECK 8: strategy budget — disabled strategies are rejected, but
	// this is a soft (WARNING) stop, not a hard veto: an operator can
	// re-enable the strategy without touching account-level state.
	if !budget.IsEnabled {
		return v.reject(result, "strategy_disabled", types.SeverityWarning,
			fmt.Sprintf("strategy %s is disabled: %s", budget.StrategyName, budget.DisabledReason))
	}

	// CHECK 9: daily loss limit.
	if account.DailyLossPercent.GreaterThanOrEqual(v.Caps.MaxDailyLossPercent) {
		return v.reject(result, "max_daily_loss", types.SeverityCritical,
			fmt.Sprintf("daily loss %s%% >= max %s%%", account.DailyLossPercent, v.Caps.MaxDailyLossPercent))
	}

	return result
}

func (v *Validator) reject(result ValidationResult, check string, sev types.Severity, msg string) ValidationResult {
	result.Approved = false
	result.Rejection = &RejectionReason{Check: check, Severity: sev, Message: msg}
	return result
}

// Decision builds the audit row spec requires for every single Validate
// invocation, approved or rejected — the Risk Validator never decides
// silently.
func (v *Validator) Decision(result ValidationResult, account types.AccountRiskState, budget types.StrategyBudget) *types.RiskDecision {
	snapshot, _ := json.Marshal(struct {
		HardCaps types.HardCaps         `json:"hard_caps"`
		Account  types.AccountRiskState `json:"account"`
		Budget   types.StrategyBudget   `json:"budget"`
	}{v.Caps, account, budget})

	d := &types.RiskDecision{
		SubjectType:    "signal",
		SubjectID:      result.Signal.ID,
		AccountID:      account.AccountID,
		Approved:       result.Approved,
		Severity:       types.SeverityInfo,
		LimitsSnapshot: string(snapshot),
		CreatedAt:      time.Now().UTC(),
	}
	if result.Rejection != nil {
		d.Check = result.Rejection.Check
		d.Severity = result.Rejection.Severity
		d.Reason = result.Rejection.Message
	}
	return d
}
