package journal

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/types"
)

const defaultLookbackDays = 30

// EntryReader is the read seam the analyzer needs from the store.
type EntryReader interface {
	EntriesSince(strategyName, symbol string, source types.TradeSource, since time.Time) ([]types.JournalEntry, error)
	RecentEntries(strategyName, symbol string, source types.TradeSource, limit int) ([]types.JournalEntry, error)
}

type Metrics struct {
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            decimal.Decimal
	TotalPnL           decimal.Decimal
	AvgPnL             decimal.Decimal
	AvgWin             decimal.Decimal
	AvgLoss            decimal.Decimal
	GrossProfit        decimal.Decimal
	GrossLoss          decimal.Decimal
	ProfitFactor       decimal.Decimal
	AvgDurationMinutes decimal.Decimal
	MaxWinStreak       int
	MaxLossStreak      int
}

type Streaks struct {
	MaxWinStreak  int
	MaxLossStreak int
}

type Deviation struct {
	WinRateDeviation     decimal.Decimal
	ProfitFactorSeverity types.Severity
}

type Underperformance struct {
	Underperforming bool
	Issues          []string
	Recommendation  string
}

// Analyzer compares LIVE performance against its BACKTEST/PAPER baseline.
type Analyzer struct {
	Reader       EntryReader
	LookbackDays int
}

func NewAnalyzer(reader EntryReader) *Analyzer {
	return &Analyzer{Reader: reader, LookbackDays: defaultLookbackDays}
}

func (a *Analyzer) calculateMetrics(entries []types.JournalEntry) Metrics {
	m := Metrics{TotalTrades: len(entries)}
	if len(entries) == 0 {
		return m
	}
	totalDurationMinutes := 0
	for _, e := range entries {
		m.TotalPnL = m.TotalPnL.Add(e.PnL)
		totalDurationMinutes += e.DurationMinutes
		if e.PnL.IsPositive() {
			m.WinningTrades++
			m.GrossProfit = m.GrossProfit.Add(e.PnL)
		} else {
			m.LosingTrades++
			m.GrossLoss = m.GrossLoss.Add(e.PnL.Abs())
		}
	}
	m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).Div(decimal.NewFromInt(int64(len(entries)))).Mul(decimal.NewFromInt(100))
	m.AvgPnL = m.TotalPnL.Div(decimal.NewFromInt(int64(len(entries))))
	m.AvgDurationMinutes = decimal.NewFromInt(int64(totalDurationMinutes)).Div(decimal.NewFromInt(int64(len(entries))))
	if m.WinningTrades > 0 {
		m.AvgWin = m.GrossProfit.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = m.GrossLoss.Div(decimal.NewFromInt(int64(m.LosingTrades)))
	}
	switch {
	case m.GrossProfit.IsPositive() && m.GrossLoss.IsZero():
		m.ProfitFactor = decimal.NewFromInt(99) // treated as unbounded, clamped
	case m.GrossLoss.IsPositive():
		m.ProfitFactor = m.GrossProfit.Div(m.GrossLoss)
	default:
		m.ProfitFactor = decimal.Zero
	}
	streaks := a.calculateStreaks(entries)
	m.MaxWinStreak = streaks.MaxWinStreak
	m.MaxLossStreak = streaks.MaxLossStreak
	return m
}

func (a *Analyzer) calculateStreaks(entries []types.JournalEntry) Streaks {
	sorted := make([]types.JournalEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ExitTime.Before(sorted[j].ExitTime) })

	var s Streaks
	curWin, curLoss := 0, 0
	for _, e := range sorted {
		if e.IsWinner {
			curWin++
			curLoss = 0
		} else {
			curLoss++
			curWin = 0
		}
		if curWin > s.MaxWinStreak {
			s.MaxWinStreak = curWin
		}
		if curLoss > s.MaxLossStreak {
			s.MaxLossStreak = curLoss
		}
	}
	return s
}

func (a *Analyzer) calculateDeviation(live, baseline Metrics) Deviation {
	d := Deviation{ProfitFactorSeverity: types.SeverityWarning}
	d.WinRateDeviation = baseline.WinRate.Sub(live.WinRate).Abs()

	livePF := clampPF(live.ProfitFactor)
	basePF := clampPF(baseline.ProfitFactor)
	pfDeviation := basePF.Sub(livePF).Abs()

	switch {
	case live.ProfitFactor.LessThan(decimal.NewFromInt(1)) && baseline.ProfitFactor.GreaterThanOrEqual(decimal.NewFromInt(1)):
		d.ProfitFactorSeverity = types.SeverityCritical
	case pfDeviation.GreaterThan(decimal.NewFromInt(20)) || d.WinRateDeviation.GreaterThan(decimal.NewFromInt(20)):
		d.ProfitFactorSeverity = types.SeverityCritical
	case pfDeviation.GreaterThan(decimal.NewFromInt(10)) || d.WinRateDeviation.GreaterThan(decimal.NewFromInt(10)):
		d.ProfitFactorSeverity = types.SeverityWarning
	default:
		d.ProfitFactorSeverity = ""
	}
	return d
}

func clampPF(pf decimal.Decimal) decimal.Decimal {
	cap := decimal.NewFromInt(99)
	if pf.GreaterThan(cap) {
		return cap
	}
	return pf
}

func (a *Analyzer) countConsecutiveLosses(strategyName, symbol string) int {
	recent, err := a.Reader.RecentEntries(strategyName, symbol, types.SourceLive, 20)
	if err != nil || len(recent) == 0 {
		return 0
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].ExitTime.After(recent[j].ExitTime) })
	count := 0
	for _, e := range recent {
		if e.IsWinner {
			break
		}
		count++
	}
	return count
}

// LiveMetrics returns the full metrics set (including streaks) for a
// strategy/symbol's live trades over the analyzer's lookback window.
func (a *Analyzer) LiveMetrics(strategyName, symbol string) Metrics {
	since := time.Now().UTC().AddDate(0, 0, -a.lookback())
	live, _ := a.Reader.EntriesSince(strategyName, symbol, types.SourceLive, since)
	return a.calculateMetrics(live)
}

// DetectUnderperformance runs the full rule set and maps it to one of
// {trigger_optimization, disable_strategy, monitor_closely}.
func (a *Analyzer) DetectUnderperformance(strategyName, symbol string) Underperformance {
	since := time.Now().UTC().AddDate(0, 0, -a.lookback())
	live, _ := a.Reader.EntriesSince(strategyName, symbol, types.SourceLive, since)
	backtest, _ := a.Reader.EntriesSince(strategyName, symbol, types.SourceBacktest, since)

	liveMetrics := a.calculateMetrics(live)
	btMetrics := a.calculateMetrics(backtest)
	deviation := a.calculateDeviation(liveMetrics, btMetrics)
	consecutiveLosses := a.countConsecutiveLosses(strategyName, symbol)

	var issues []string
	if liveMetrics.TotalTrades >= 5 && liveMetrics.WinRate.LessThan(decimal.NewFromInt(40)) {
		issues = append(issues, "low_win_rate")
	}
	if liveMetrics.TotalTrades >= 5 && liveMetrics.ProfitFactor.LessThan(decimal.NewFromInt(1)) {
		issues = append(issues, "unprofitable")
	}
	if btMetrics.TotalTrades > 0 && deviation.ProfitFactorSeverity == types.SeverityCritical {
		issues = append(issues, "critical_deviation_from_backtest")
	}
	if consecutiveLosses >= 5 {
		issues = append(issues, "excessive_consecutive_losses")
	}

	if len(issues) == 0 {
		return Underperformance{Underperforming: false}
	}

	return Underperformance{
		Underperforming: true,
		Issues:          issues,
		Recommendation:  recommendation(issues),
	}
}

func recommendation(issues []string) string {
	has := func(name string) bool {
		for _, i := range issues {
			if i == name {
				return true
			}
		}
		return false
	}
	switch {
	case has("critical_deviation_from_backtest"):
		return "trigger_optimization"
	case has("excessive_consecutive_losses"):
		return "disable_strategy"
	case has("unprofitable") && has("low_win_rate"):
		return "disable_strategy"
	case has("unprofitable"):
		return "trigger_optimization"
	case has("low_win_rate"):
		return "monitor_closely"
	default:
		return "monitor_closely"
	}
}

func (a *Analyzer) lookback() int {
	if a.LookbackDays <= 0 {
		return defaultLookbackDays
	}
	return a.LookbackDays
}
