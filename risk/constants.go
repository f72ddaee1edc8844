package risk

import (
	"github.com/shopspring/decimal"

	"tradecore/types"
)

// DefaultHardCaps returns the code-defined risk ceilings. These are
// compiled in, not configurable at runtime — Settings can only narrow
// them with soft limits, never raise them. Values are chosen to be
// consistent with the platform's own worked examples: a 16% drawdown
// must trip the emergency shutdown (EmergencyDrawdownPercent=15), and a
// proposed 3.0% per-trade risk update must be rejected as exceeding the
// hard cap (MaxRiskPerTradePercent=2.0).
func DefaultHardCaps() types.HardCaps {
	return types.HardCaps{
		MaxRiskPerTradePercent:    decimal.NewFromFloat(2.0),
		MaxPositionSizeLots:       decimal.NewFromFloat(10.0),
		MaxOpenPositions:          5,
		MaxDailyLossPercent:       decimal.NewFromFloat(5.0),
		EmergencyDrawdownPercent:  decimal.NewFromFloat(15.0),
		MaxTradesPerDay:           20,
		MaxTradesPerHour:          6,
		MaxRiskPerStrategyPercent: decimal.NewFromFloat(6.0),
		MinRiskRewardRatio:        decimal.NewFromFloat(1.5),
	}
}

// MaxConsecutiveLosses is the strategy-level auto-disable threshold.
// Kept as a named constant rather than a HardCaps field because it
// governs a strategy budget, not an account — a candidate for exposure
// through Settings in a future revision.
const MaxConsecutiveLosses = 5
