// Package journal implements the append-only trade journal, the
// performance analyzer that reads it, and the feedback loop that acts
// on what the analyzer finds.
package journal

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradecore/types"
)

// Writer records immutable journal entries. The journal is the single
// source of truth performance analysis reads from — entries are never
// updated or deleted once written.
type Writer struct {
	save func(*types.JournalEntry) error
}

func NewWriter(save func(*types.JournalEntry) error) *Writer {
	return &Writer{save: save}
}

func riskReward(entry, stop, target decimal.Decimal) decimal.Decimal {
	risk := entry.Sub(stop).Abs()
	reward := target.Sub(entry).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	return reward.Div(risk)
}

func pnlPercent(pnl, entry, size decimal.Decimal) decimal.Decimal {
	denom := entry.Mul(size)
	if denom.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(denom).Mul(decimal.NewFromInt(100))
}

func durationMinutes(entryTime, exitTime time.Time) int {
	return int(math.Round(exitTime.Sub(entryTime).Minutes()))
}

// RecordBacktestTrade journals a closed backtest trade.
func (w *Writer) RecordBacktestTrade(pos types.Position, config map[string]interface{}, backtestID string, marketContext map[string]interface{}, timeframe string) (*types.JournalEntry, error) {
	short := backtestID
	if len(short) > 8 {
		short = short[:8]
	}
	entry := &types.JournalEntry{
		EntryID:         fmt.Sprintf("BT_%s_%s", short, uuid.NewString()[:8]),
		Source:          types.SourceBacktest,
		StrategyName:    pos.StrategyName,
		StrategyConfig:  config,
		Symbol:          pos.Symbol,
		Timeframe:       timeframe,
		Side:            pos.Side,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       pos.ExitPrice,
		PositionSize:    pos.PositionSize,
		StopLoss:        pos.StopLoss,
		TakeProfit:      pos.TakeProfit,
		RiskRewardRatio: riskReward(pos.EntryPrice, pos.StopLoss, pos.TakeProfit),
		PnL:             pos.RealizedPnL,
		PnLPercent:      pnlPercent(pos.RealizedPnL, pos.EntryPrice, pos.PositionSize),
		IsWinner:        pos.RealizedPnL.IsPositive(),
		ExitReason:      pos.ExitReason,
		Commission:      pos.CommissionPaid,
		MarketContext:   marketContext,
		EntryTime:       pos.EntryTime,
		ExitTime:        pos.ExitTime,
		DurationMinutes: durationMinutes(pos.EntryTime, pos.ExitTime),
		BacktestID:      backtestID,
	}
	return entry, w.save(entry)
}

func (w *Writer) recordOrderTrade(source types.TradeSource, prefix string, pos types.Position, config map[string]interface{}, orderID, signalID int64, marketContext map[string]interface{}, timeframe string) (*types.JournalEntry, error) {
	if pos.Open {
		return nil, fmt.Errorf("cannot journal an open position")
	}
	entry := &types.JournalEntry{
		EntryID:          fmt.Sprintf("%s_%d_%s", prefix, orderID, uuid.NewString()[:8]),
		Source:           source,
		StrategyName:     pos.StrategyName,
		StrategyConfig:   config,
		Symbol:           pos.Symbol,
		Timeframe:        timeframe,
		Side:             pos.Side,
		EntryPrice:       pos.EntryPrice,
		ExitPrice:        pos.ExitPrice,
		PositionSize:     pos.PositionSize,
		StopLoss:         pos.StopLoss,
		TakeProfit:       pos.TakeProfit,
		RiskRewardRatio:  riskReward(pos.EntryPrice, pos.StopLoss, pos.TakeProfit),
		PnL:              pos.RealizedPnL,
		PnLPercent:       pnlPercent(pos.RealizedPnL, pos.EntryPrice, pos.PositionSize),
		IsWinner:         pos.RealizedPnL.IsPositive(),
		ExitReason:       pos.ExitReason,
		Commission:       pos.CommissionPaid,
		MarketContext:    marketContext,
		EntryTime:        pos.EntryTime,
		ExitTime:         pos.ExitTime,
		DurationMinutes:  durationMinutes(pos.EntryTime, pos.ExitTime),
		ExecutionOrderID: orderID,
		SignalID:         signalID,
	}
	return entry, w.save(entry)
}

// RecordLiveTrade journals a closed live trade. pos.ExitReason must
// already be set by whichever component closed the position — it is
// never inferred here from price proximity to stop/target.
func (w *Writer) RecordLiveTrade(pos types.Position, config map[string]interface{}, orderID, signalID int64, marketContext map[string]interface{}, timeframe string) (*types.JournalEntry, error) {
	return w.recordOrderTrade(types.SourceLive, "LIVE", pos, config, orderID, signalID, marketContext, timeframe)
}

// RecordPaperTrade journals a closed paper trade.
func (w *Writer) RecordPaperTrade(pos types.Position, config map[string]interface{}, orderID, signalID int64, marketContext map[string]interface{}, timeframe string) (*types.JournalEntry, error) {
	return w.recordOrderTrade(types.SourcePaper, "PAPER", pos, config, orderID, signalID, marketContext, timeframe)
}
