package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/types"
)

type fakeBudgetStore struct {
	budgets map[string]*types.StrategyBudget
}

func newFakeBudgetStore() *fakeBudgetStore {
	return &fakeBudgetStore{budgets: make(map[string]*types.StrategyBudget)}
}

func (s *fakeBudgetStore) key(strategyName, symbol string) string { return strategyName + ":" + symbol }

func (s *fakeBudgetStore) GetBudget(strategyName, symbol string) (*types.StrategyBudget, error) {
	return s.budgets[s.key(strategyName, symbol)], nil
}

func (s *fakeBudgetStore) SaveBudget(b *types.StrategyBudget) error {
	s.budgets[s.key(b.StrategyName, b.Symbol)] = b
	return nil
}

type fakeOptimChecker struct{ active bool }

func (f fakeOptimChecker) HasActiveJob(strategyName, symbol string) (int64, bool) {
	if f.active {
		return 42, true
	}
	return 0, false
}

func TestRunFeedbackCycleNoActionWhenHealthy(t *testing.T) {
	reader := newFakeReader()
	now := time.Now()
	for i := 0; i < 8; i++ {
		reader.add(types.SourceLive, 100, true, now.Add(time.Duration(i)*time.Hour))
	}
	loop := NewFeedbackLoop(NewAnalyzer(reader), newFakeBudgetStore(), fakeOptimChecker{}, nil)

	result := loop.RunFeedbackCycle("trend_follow", "EURUSD")
	assert.Equal(t, "none", result["action"])
}

func TestRunFeedbackCycleDisablesStrategyOnLossStreak(t *testing.T) {
	reader := newFakeReader()
	now := time.Now()
	for i := 0; i < 5; i++ {
		reader.add(types.SourceLive, -10, false, now.Add(time.Duration(i)*time.Hour))
	}
	budgets := newFakeBudgetStore()
	budgets.SaveBudget(&types.StrategyBudget{StrategyName: "trend_follow", Symbol: "EURUSD", IsEnabled: true})

	var saved []*FeedbackDecision
	loop := NewFeedbackLoop(NewAnalyzer(reader), budgets, fakeOptimChecker{}, func(d *FeedbackDecision) error {
		saved = append(saved, d)
		return nil
	})

	result := loop.RunFeedbackCycle("trend_follow", "EURUSD")
	assert.Equal(t, "disable_strategy", result["action"])

	budget, err := budgets.GetBudget("trend_follow", "EURUSD")
	require.NoError(t, err)
	assert.False(t, budget.IsEnabled)
	require.Len(t, saved, 2, "one decision logged before executing, one after")
	assert.True(t, saved[1].Executed)
}

func TestRunFeedbackCycleSkipsDuplicateOptimizationJob(t *testing.T) {
	reader := newFakeReader()
	now := time.Now()
	for i := 0; i < 10; i++ {
		reader.add(types.SourceLive, -10, false, now.Add(time.Duration(i)*time.Hour))
		reader.add(types.SourceBacktest, 50, true, now.Add(time.Duration(i)*time.Hour))
	}
	loop := NewFeedbackLoop(NewAnalyzer(reader), newFakeBudgetStore(), fakeOptimChecker{active: true}, nil)

	result := loop.RunFeedbackCycle("trend_follow", "EURUSD")
	assert.Equal(t, "trigger_optimization", result["action"])
	assert.Contains(t, result["execution_result"], "already in progress")
}

// scopedReader routes EntriesSince/RecentEntries to a per-(strategy,symbol)
// fakeReader, so a batch covering several pairs can give each its own data.
type scopedReader struct {
	byPair map[string]*fakeReader
}

func (r *scopedReader) key(strategyName, symbol string) string { return strategyName + ":" + symbol }

func (r *scopedReader) EntriesSince(strategyName, symbol string, source types.TradeSource, since time.Time) ([]types.JournalEntry, error) {
	reader, ok := r.byPair[r.key(strategyName, symbol)]
	if !ok {
		return nil, nil
	}
	return reader.EntriesSince(strategyName, symbol, source, since)
}

func (r *scopedReader) RecentEntries(strategyName, symbol string, source types.TradeSource, limit int) ([]types.JournalEntry, error) {
	reader, ok := r.byPair[r.key(strategyName, symbol)]
	if !ok {
		return nil, nil
	}
	return reader.RecentEntries(strategyName, symbol, source, limit)
}

func TestRunBatchFeedbackCountsActionsTaken(t *testing.T) {
	now := time.Now()
	losing := newFakeReader()
	for i := 0; i < 5; i++ {
		losing.add(types.SourceLive, -10, false, now.Add(time.Duration(i)*time.Hour))
	}
	healthy := newFakeReader()
	for i := 0; i < 8; i++ {
		healthy.add(types.SourceLive, 100, true, now.Add(time.Duration(i)*time.Hour))
	}
	reader := &scopedReader{byPair: map[string]*fakeReader{
		"trend_follow:EURUSD": losing,
		"mean_revert:GBPUSD":  healthy,
	}}
	loop := NewFeedbackLoop(NewAnalyzer(reader), newFakeBudgetStore(), fakeOptimChecker{}, nil)

	result := loop.RunBatchFeedback([][2]string{{"trend_follow", "EURUSD"}, {"mean_revert", "GBPUSD"}})
	assert.Equal(t, 2, result["total_analyzed"])
	assert.Equal(t, 1, result["actions_taken"], "only the underperforming pair triggers an action")
}
