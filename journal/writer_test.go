package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/types"
)

func closedPosition() types.Position {
	now := time.Now().UTC()
	return types.Position{
		StrategyName: "trend_follow",
		Symbol:       "EURUSD",
		Side:         types.SideLong,
		EntryPrice:   decimal.NewFromFloat(1.1000),
		ExitPrice:    decimal.NewFromFloat(1.1050),
		PositionSize: decimal.NewFromFloat(1.0),
		StopLoss:     decimal.NewFromFloat(1.0950),
		TakeProfit:   decimal.NewFromFloat(1.1100),
		RealizedPnL:  decimal.NewFromFloat(50),
		ExitReason:   types.ExitTakeProfit,
		EntryTime:    now.Add(-time.Hour),
		ExitTime:     now,
		Open:         false,
	}
}

func TestRecordBacktestTradeComputesDerivedFields(t *testing.T) {
	var saved *types.JournalEntry
	w := NewWriter(func(e *types.JournalEntry) error { saved = e; return nil })

	entry, err := w.RecordBacktestTrade(closedPosition(), nil, "bt-123", nil, "H1")
	require.NoError(t, err)
	assert.Same(t, saved, entry)
	assert.Equal(t, types.SourceBacktest, entry.Source)
	assert.True(t, entry.IsWinner)
	assert.Equal(t, 60, entry.DurationMinutes)
	assert.True(t, entry.RiskRewardRatio.Equal(decimal.NewFromInt(2)))
}

func TestRecordLiveTradeRejectsOpenPosition(t *testing.T) {
	w := NewWriter(func(e *types.JournalEntry) error { return nil })
	pos := closedPosition()
	pos.Open = true

	_, err := w.RecordLiveTrade(pos, nil, 1, 1, nil, "H1")
	assert.Error(t, err)
}

func TestRecordLiveTradePropagatesOrderAndSignalIDs(t *testing.T) {
	w := NewWriter(func(e *types.JournalEntry) error { return nil })

	entry, err := w.RecordLiveTrade(closedPosition(), nil, 42, 7, nil, "H1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.ExecutionOrderID)
	assert.Equal(t, int64(7), entry.SignalID)
	assert.Equal(t, types.SourceLive, entry.Source)
}
