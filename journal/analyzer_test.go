package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tradecore/types"
)

// fakeReader is an in-memory EntryReader double keyed by source.
type fakeReader struct {
	bySource map[types.TradeSource][]types.JournalEntry
}

func newFakeReader() *fakeReader {
	return &fakeReader{bySource: make(map[types.TradeSource][]types.JournalEntry)}
}

func (r *fakeReader) add(source types.TradeSource, pnl float64, isWinner bool, exitTime time.Time) {
	r.addWithDuration(source, pnl, isWinner, exitTime, 0)
}

func (r *fakeReader) addWithDuration(source types.TradeSource, pnl float64, isWinner bool, exitTime time.Time, durationMinutes int) {
	r.bySource[source] = append(r.bySource[source], types.JournalEntry{
		Source: source, PnL: decimal.NewFromFloat(pnl), IsWinner: isWinner, ExitTime: exitTime,
		DurationMinutes: durationMinutes,
	})
}

func (r *fakeReader) EntriesSince(strategyName, symbol string, source types.TradeSource, since time.Time) ([]types.JournalEntry, error) {
	return r.bySource[source], nil
}

func (r *fakeReader) RecentEntries(strategyName, symbol string, source types.TradeSource, limit int) ([]types.JournalEntry, error) {
	entries := r.bySource[source]
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func TestDetectUnderperformanceCleanWhenNoIssues(t *testing.T) {
	reader := newFakeReader()
	now := time.Now()
	for i := 0; i < 8; i++ {
		reader.add(types.SourceLive, 100, true, now.Add(time.Duration(i)*time.Hour))
		reader.add(types.SourceBacktest, 100, true, now.Add(time.Duration(i)*time.Hour))
	}
	a := NewAnalyzer(reader)

	result := a.DetectUnderperformance("trend_follow", "EURUSD")
	assert.False(t, result.Underperforming)
}

func TestDetectUnderperformanceFlagsLowWinRate(t *testing.T) {
	reader := newFakeReader()
	now := time.Now()
	for i := 0; i < 8; i++ {
		win := i < 2 // 2/8 = 25% win rate
		pnl := -10.0
		if win {
			pnl = 10
		}
		reader.add(types.SourceLive, pnl, win, now.Add(time.Duration(i)*time.Hour))
	}
	a := NewAnalyzer(reader)

	result := a.DetectUnderperformance("trend_follow", "EURUSD")
	assert.True(t, result.Underperforming)
	assert.Contains(t, result.Issues, "low_win_rate")
}

func TestDetectUnderperformanceFlagsConsecutiveLosses(t *testing.T) {
	reader := newFakeReader()
	now := time.Now()
	for i := 0; i < 5; i++ {
		reader.add(types.SourceLive, -10, false, now.Add(time.Duration(i)*time.Hour))
	}
	a := NewAnalyzer(reader)

	result := a.DetectUnderperformance("trend_follow", "EURUSD")
	assert.True(t, result.Underperforming)
	assert.Contains(t, result.Issues, "excessive_consecutive_losses")
	assert.Equal(t, "disable_strategy", result.Recommendation)
}

func TestDetectUnderperformanceRecommendsOptimizationOnDeviation(t *testing.T) {
	reader := newFakeReader()
	now := time.Now()
	for i := 0; i < 10; i++ {
		reader.add(types.SourceLive, -10, false, now.Add(time.Duration(i)*time.Hour))
		reader.add(types.SourceBacktest, 50, true, now.Add(time.Duration(i)*time.Hour))
	}
	a := NewAnalyzer(reader)

	result := a.DetectUnderperformance("trend_follow", "EURUSD")
	assert.True(t, result.Underperforming)
	assert.Equal(t, "trigger_optimization", result.Recommendation)
}

func TestLiveMetricsComputesWinLossAverages(t *testing.T) {
	reader := newFakeReader()
	now := time.Now()
	reader.addWithDuration(types.SourceLive, 100, true, now, 30)
	reader.addWithDuration(types.SourceLive, 50, true, now.Add(time.Hour), 10)
	reader.addWithDuration(types.SourceLive, -40, false, now.Add(2*time.Hour), 20)
	a := NewAnalyzer(reader)

	m := a.LiveMetrics("trend_follow", "EURUSD")
	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.True(t, decimal.NewFromFloat(75).Equal(m.AvgWin))
	assert.True(t, decimal.NewFromFloat(40).Equal(m.AvgLoss))
	assert.True(t, decimal.NewFromInt(20).Equal(m.AvgDurationMinutes))
	assert.Equal(t, 2, m.MaxWinStreak)
	assert.Equal(t, 1, m.MaxLossStreak)
}

func TestLiveMetricsZeroTradesHasZeroedFields(t *testing.T) {
	reader := newFakeReader()
	a := NewAnalyzer(reader)

	m := a.LiveMetrics("trend_follow", "EURUSD")
	assert.Equal(t, 0, m.TotalTrades)
	assert.True(t, decimal.Zero.Equal(m.AvgWin))
	assert.Equal(t, 0, m.MaxWinStreak)
}
