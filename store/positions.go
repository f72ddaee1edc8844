package store

import (
	"context"
	"database/sql"
	"time"

	"tradecore/types"
)

const positionsSchema = `
CREATE TABLE IF NOT EXISTS positions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	stop_loss TEXT,
	take_profit TEXT,
	position_size TEXT NOT NULL,
	commission_paid TEXT,
	entry_time DATETIME NOT NULL,
	exit_price TEXT,
	exit_time DATETIME,
	exit_reason TEXT,
	realized_pnl TEXT,
	is_open INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol, is_open);
`

type PositionStore struct {
	db *DB
}

func NewPositionStore(db *DB) *PositionStore { return &PositionStore{db: db} }

func (s *PositionStore) Save(ctx context.Context, p *types.Position) error {
	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO positions (strategy_name, symbol, side, entry_price, stop_loss, take_profit, position_size, commission_paid, entry_time, is_open)
			 VALUES (?,?,?,?,?,?,?,?,?,1)`,
			p.StrategyName, p.Symbol, p.Side, decStr(p.EntryPrice), decStr(p.StopLoss), decStr(p.TakeProfit),
			decStr(p.PositionSize), decStr(p.CommissionPaid), p.EntryTime)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.ID = id
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE positions SET exit_price=?, exit_time=?, exit_reason=?, realized_pnl=?, is_open=? WHERE id=?`,
		nullableString(decStr(p.ExitPrice)), nullableTime(p.ExitTime), nullableString(string(p.ExitReason)),
		nullableString(decStr(p.RealizedPnL)), boolToInt(p.Open), p.ID)
	return err
}

func (s *PositionStore) OpenPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy_name, symbol, side, entry_price, stop_loss, take_profit, position_size, commission_paid, entry_time
		 FROM positions WHERE symbol = ? AND is_open = 1`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Position
	for rows.Next() {
		var p types.Position
		var side string
		var entry, stop, target, size, commission string
		if err := rows.Scan(&p.ID, &p.StrategyName, &p.Symbol, &side, &entry, &stop, &target, &size, &commission, &p.EntryTime); err != nil {
			return nil, err
		}
		p.Side = types.Side(side)
		p.EntryPrice = parseDec(entry)
		p.StopLoss = parseDec(stop)
		p.TakeProfit = parseDec(target)
		p.PositionSize = parseDec(size)
		p.CommissionPaid = parseDec(commission)
		p.Open = true
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PositionStore) ClosedSince(ctx context.Context, since time.Time) ([]types.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy_name, symbol, side, entry_price, stop_loss, take_profit, position_size, commission_paid, entry_time, exit_price, exit_time, exit_reason, realized_pnl
		 FROM positions WHERE is_open = 0 AND exit_time >= ?`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Position
	for rows.Next() {
		var p types.Position
		var side, exitReason string
		var entry, stop, target, size, commission, exitPrice, pnl string
		var exitTime sql.NullTime
		if err := rows.Scan(&p.ID, &p.StrategyName, &p.Symbol, &side, &entry, &stop, &target, &size, &commission,
			&p.EntryTime, &exitPrice, &exitTime, &exitReason, &pnl); err != nil {
			return nil, err
		}
		p.Side = types.Side(side)
		p.EntryPrice = parseDec(entry)
		p.StopLoss = parseDec(stop)
		p.TakeProfit = parseDec(target)
		p.PositionSize = parseDec(size)
		p.CommissionPaid = parseDec(commission)
		p.ExitPrice = parseDec(exitPrice)
		p.ExitReason = types.ExitReason(exitReason)
		p.RealizedPnL = parseDec(pnl)
		if exitTime.Valid {
			p.ExitTime = exitTime.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
