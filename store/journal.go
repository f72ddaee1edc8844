package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"tradecore/types"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS journal_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id TEXT NOT NULL UNIQUE,
	source TEXT NOT NULL,
	strategy_name TEXT NOT NULL,
	strategy_config TEXT,
	symbol TEXT NOT NULL,
	timeframe TEXT,
	side TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	position_size TEXT NOT NULL,
	stop_loss TEXT,
	take_profit TEXT,
	risk_percent TEXT,
	risk_reward_ratio TEXT,
	pnl TEXT NOT NULL,
	pnl_percent TEXT,
	is_winner INTEGER NOT NULL,
	exit_reason TEXT,
	commission TEXT,
	market_context TEXT,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	duration_minutes INTEGER,
	backtest_id TEXT,
	execution_order_id INTEGER,
	signal_id INTEGER,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_journal_strategy_symbol ON journal_entries(strategy_name, symbol, source);
CREATE INDEX IF NOT EXISTS idx_journal_exit_time ON journal_entries(exit_time);
`

// JournalStore is the append-only store behind journal.Writer and the
// EntryReader seam journal.Analyzer reads through.
type JournalStore struct {
	db *DB
}

func NewJournalStore(db *DB) *JournalStore { return &JournalStore{db: db} }

// Save matches the func(*types.JournalEntry) error signature journal.NewWriter expects.
func (s *JournalStore) Save(e *types.JournalEntry) error {
	config, _ := json.Marshal(e.StrategyConfig)
	market, _ := json.Marshal(e.MarketContext)
	res, err := s.db.Exec(
		`INSERT INTO journal_entries (entry_id, source, strategy_name, strategy_config, symbol, timeframe, side,
			entry_price, exit_price, position_size, stop_loss, take_profit, risk_percent, risk_reward_ratio,
			pnl, pnl_percent, is_winner, exit_reason, commission, market_context, entry_time, exit_time,
			duration_minutes, backtest_id, execution_order_id, signal_id)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Source, e.StrategyName, string(config), e.Symbol, e.Timeframe, e.Side,
		decStr(e.EntryPrice), decStr(e.ExitPrice), decStr(e.PositionSize), decStr(e.StopLoss), decStr(e.TakeProfit),
		decStr(e.RiskPercent), decStr(e.RiskRewardRatio), decStr(e.PnL), decStr(e.PnLPercent), boolToInt(e.IsWinner),
		string(e.ExitReason), decStr(e.Commission), string(market), e.EntryTime, e.ExitTime,
		e.DurationMinutes, nullableString(e.BacktestID), nullableInt64(e.ExecutionOrderID), nullableInt64(e.SignalID))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (s *JournalStore) query(q string, args ...interface{}) ([]types.JournalEntry, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.JournalEntry
	for rows.Next() {
		var e types.JournalEntry
		var source, side, exitReason, config, market string
		var entry, exit, size, stop, target, riskPct, rr, pnl, pnlPct, commission string
		var backtestID sql.NullString
		var orderID, signalID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.EntryID, &source, &e.StrategyName, &config, &e.Symbol, &e.Timeframe, &side,
			&entry, &exit, &size, &stop, &target, &riskPct, &rr, &pnl, &pnlPct, &e.IsWinner, &exitReason,
			&commission, &market, &e.EntryTime, &e.ExitTime, &e.DurationMinutes, &backtestID, &orderID, &signalID); err != nil {
			return nil, err
		}
		e.Source = types.TradeSource(source)
		e.Side = types.Side(side)
		e.ExitReason = types.ExitReason(exitReason)
		e.EntryPrice = parseDec(entry)
		e.ExitPrice = parseDec(exit)
		e.PositionSize = parseDec(size)
		e.StopLoss = parseDec(stop)
		e.TakeProfit = parseDec(target)
		e.RiskPercent = parseDec(riskPct)
		e.RiskRewardRatio = parseDec(rr)
		e.PnL = parseDec(pnl)
		e.PnLPercent = parseDec(pnlPct)
		e.Commission = parseDec(commission)
		_ = json.Unmarshal([]byte(config), &e.StrategyConfig)
		_ = json.Unmarshal([]byte(market), &e.MarketContext)
		e.BacktestID = backtestID.String
		e.ExecutionOrderID = orderID.Int64
		e.SignalID = signalID.Int64
		out = append(out, e)
	}
	return out, rows.Err()
}

const journalSelectCols = `id, entry_id, source, strategy_name, strategy_config, symbol, timeframe, side,
	entry_price, exit_price, position_size, stop_loss, take_profit, risk_percent, risk_reward_ratio,
	pnl, pnl_percent, is_winner, exit_reason, commission, market_context, entry_time, exit_time,
	duration_minutes, backtest_id, execution_order_id, signal_id`

// EntriesSince implements journal.EntryReader.
func (s *JournalStore) EntriesSince(strategyName, symbol string, source types.TradeSource, since time.Time) ([]types.JournalEntry, error) {
	return s.query(
		`SELECT `+journalSelectCols+` FROM journal_entries
		 WHERE strategy_name = ? AND symbol = ? AND source = ? AND exit_time >= ? ORDER BY exit_time ASC`,
		strategyName, symbol, source, since)
}

// RecentEntries implements journal.EntryReader.
func (s *JournalStore) RecentEntries(strategyName, symbol string, source types.TradeSource, limit int) ([]types.JournalEntry, error) {
	return s.query(
		`SELECT `+journalSelectCols+` FROM journal_entries
		 WHERE strategy_name = ? AND symbol = ? AND source = ? ORDER BY exit_time DESC LIMIT ?`,
		strategyName, symbol, source, limit)
}

func nullableInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
