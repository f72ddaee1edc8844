package store

import (
	"database/sql"
	"time"

	"tradecore/types"
)

const accountRiskSchema = `
CREATE TABLE IF NOT EXISTS account_risk_state (
	account_id TEXT PRIMARY KEY,
	balance TEXT NOT NULL,
	equity TEXT NOT NULL,
	peak_balance TEXT NOT NULL,
	drawdown_percent TEXT,
	daily_pnl TEXT,
	daily_loss_percent TEXT,
	trades_today INTEGER DEFAULT 0,
	trades_this_hour INTEGER DEFAULT 0,
	open_positions INTEGER DEFAULT 0,
	total_exposure TEXT,
	emergency_shutdown INTEGER DEFAULT 0,
	emergency_reason TEXT,
	last_trade_at DATETIME,
	day_reset_at DATETIME,
	hour_reset_at DATETIME,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const strategyBudgetSchema = `
CREATE TABLE IF NOT EXISTS strategy_budgets (
	strategy_name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	max_risk_percent TEXT,
	daily_pnl TEXT,
	consecutive_losses INTEGER DEFAULT 0,
	max_consecutive_losses INTEGER DEFAULT 5,
	is_enabled INTEGER DEFAULT 1,
	disabled_reason TEXT,
	last_updated DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (strategy_name, symbol)
);
`

const riskDecisionSchema = `
CREATE TABLE IF NOT EXISTS risk_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_type TEXT NOT NULL,
	subject_id INTEGER NOT NULL,
	account_id TEXT NOT NULL,
	approved INTEGER NOT NULL,
	check_name TEXT,
	severity TEXT,
	reason TEXT,
	limits_snapshot TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// RiskStore persists account risk state and strategy budgets for the
// risk Monitor, and implements journal.BudgetStore for the feedback loop.
type RiskStore struct {
	db *DB
}

func NewRiskStore(db *DB) *RiskStore { return &RiskStore{db: db} }

func (s *RiskStore) SaveAccountState(state *types.AccountRiskState) error {
	_, err := s.db.Exec(
		`INSERT INTO account_risk_state (account_id, balance, equity, peak_balance, drawdown_percent, daily_pnl,
			daily_loss_percent, trades_today, trades_this_hour, open_positions, total_exposure, emergency_shutdown,
			emergency_reason, last_trade_at, day_reset_at, hour_reset_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,CURRENT_TIMESTAMP)
		 ON CONFLICT(account_id) DO UPDATE SET
			balance=excluded.balance, equity=excluded.equity, peak_balance=excluded.peak_balance,
			drawdown_percent=excluded.drawdown_percent, daily_pnl=excluded.daily_pnl,
			daily_loss_percent=excluded.daily_loss_percent, trades_today=excluded.trades_today,
			trades_this_hour=excluded.trades_this_hour, open_positions=excluded.open_positions,
			total_exposure=excluded.total_exposure, emergency_shutdown=excluded.emergency_shutdown,
			emergency_reason=excluded.emergency_reason, last_trade_at=excluded.last_trade_at,
			day_reset_at=excluded.day_reset_at, hour_reset_at=excluded.hour_reset_at, updated_at=CURRENT_TIMESTAMP`,
		state.AccountID, decStr(state.Balance), decStr(state.Equity), decStr(state.PeakBalance),
		decStr(state.DrawdownPercent), decStr(state.DailyPnL), decStr(state.DailyLossPercent),
		state.TradesToday, state.TradesThisHour, state.OpenPositions, decStr(state.TotalExposure),
		boolToInt(state.EmergencyShutdown), nullableString(state.EmergencyReason),
		nullableTime(state.LastTradeAt), nullableTime(state.DayResetAt), nullableTime(state.HourResetAt))
	return err
}

func (s *RiskStore) GetAccountState(accountID string) (*types.AccountRiskState, error) {
	row := s.db.QueryRow(
		`SELECT account_id, balance, equity, peak_balance, drawdown_percent, daily_pnl, daily_loss_percent,
			trades_today, trades_this_hour, open_positions, total_exposure, emergency_shutdown, emergency_reason,
			last_trade_at, day_reset_at, hour_reset_at
		 FROM account_risk_state WHERE account_id = ?`, accountID)
	var st types.AccountRiskState
	var balance, equity, peak, drawdown, dailyPnL, dailyLossPct, exposure string
	var emergencyReason sql.NullString
	var lastTrade, dayReset, hourReset sql.NullTime
	var emergency int
	if err := row.Scan(&st.AccountID, &balance, &equity, &peak, &drawdown, &dailyPnL, &dailyLossPct,
		&st.TradesToday, &st.TradesThisHour, &st.OpenPositions, &exposure, &emergency, &emergencyReason,
		&lastTrade, &dayReset, &hourReset); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	st.Balance = parseDec(balance)
	st.Equity = parseDec(equity)
	st.PeakBalance = parseDec(peak)
	st.DrawdownPercent = parseDec(drawdown)
	st.DailyPnL = parseDec(dailyPnL)
	st.DailyLossPercent = parseDec(dailyLossPct)
	st.TotalExposure = parseDec(exposure)
	st.EmergencyShutdown = emergency != 0
	st.EmergencyReason = emergencyReason.String
	st.LastTradeAt = lastTrade.Time
	st.DayResetAt = dayReset.Time
	st.HourResetAt = hourReset.Time
	return &st, nil
}

// SaveBudget implements journal.BudgetStore.
func (s *RiskStore) SaveBudget(b *types.StrategyBudget) error {
	b.LastUpdated = time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO strategy_budgets (strategy_name, symbol, max_risk_percent, daily_pnl, consecutive_losses,
			max_consecutive_losses, is_enabled, disabled_reason, last_updated)
		 VALUES (?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(strategy_name, symbol) DO UPDATE SET
			max_risk_percent=excluded.max_risk_percent, daily_pnl=excluded.daily_pnl,
			consecutive_losses=excluded.consecutive_losses, max_consecutive_losses=excluded.max_consecutive_losses,
			is_enabled=excluded.is_enabled, disabled_reason=excluded.disabled_reason, last_updated=excluded.last_updated`,
		b.StrategyName, b.Symbol, decStr(b.MaxRiskPercent), decStr(b.DailyPnL), b.ConsecutiveLosses,
		b.MaxConsecutiveLosses, boolToInt(b.IsEnabled), nullableString(b.DisabledReason), b.LastUpdated)
	return err
}

// GetBudget implements journal.BudgetStore.
func (s *RiskStore) GetBudget(strategyName, symbol string) (*types.StrategyBudget, error) {
	row := s.db.QueryRow(
		`SELECT strategy_name, symbol, max_risk_percent, daily_pnl, consecutive_losses, max_consecutive_losses,
			is_enabled, disabled_reason, last_updated
		 FROM strategy_budgets WHERE strategy_name = ? AND symbol = ?`, strategyName, symbol)
	var b types.StrategyBudget
	var maxRisk, dailyPnL string
	var enabled int
	var reason sql.NullString
	if err := row.Scan(&b.StrategyName, &b.Symbol, &maxRisk, &dailyPnL, &b.ConsecutiveLosses,
		&b.MaxConsecutiveLosses, &enabled, &reason, &b.LastUpdated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	b.MaxRiskPercent = parseDec(maxRisk)
	b.DailyPnL = parseDec(dailyPnL)
	b.IsEnabled = enabled != 0
	b.DisabledReason = reason.String
	return &b, nil
}

// SaveDecision records one RiskDecision row. The Risk Validator never
// decides silently: every Validate call, approved or rejected, lands here.
func (s *RiskStore) SaveDecision(d *types.RiskDecision) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO risk_decisions (subject_type, subject_id, account_id, approved, check_name, severity, reason,
			limits_snapshot, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		d.SubjectType, d.SubjectID, d.AccountID, boolToInt(d.Approved), nullableString(d.Check),
		nullableString(string(d.Severity)), nullableString(d.Reason), d.LimitsSnapshot, d.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// ListDecisions returns the most recent decisions, newest first, capped at limit.
func (s *RiskStore) ListDecisions(limit int) ([]*types.RiskDecision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, subject_type, subject_id, account_id, approved, check_name, severity, reason, limits_snapshot, created_at
		 FROM risk_decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.RiskDecision
	for rows.Next() {
		var d types.RiskDecision
		var approved int
		var check, severity, reason sql.NullString
		if err := rows.Scan(&d.ID, &d.SubjectType, &d.SubjectID, &d.AccountID, &approved, &check, &severity,
			&reason, &d.LimitsSnapshot, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Approved = approved != 0
		d.Check = check.String
		d.Severity = types.Severity(severity.String)
		d.Reason = reason.String
		out = append(out, &d)
	}
	return out, rows.Err()
}
