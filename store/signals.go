package store

import (
	"context"
	"database/sql"
	"time"

	"tradecore/types"
)

const signalsSchema = `
CREATE TABLE IF NOT EXISTS signals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	stop_loss TEXT NOT NULL,
	take_profit TEXT NOT NULL,
	position_size TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_signals_strategy ON signals(strategy_name, symbol);
`

const ordersSchema = `
CREATE TABLE IF NOT EXISTS execution_orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_id INTEGER NOT NULL,
	client_order_id TEXT NOT NULL,
	broker_order_id TEXT,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	quantity TEXT NOT NULL,
	limit_price TEXT,
	status TEXT NOT NULL,
	filled_price TEXT,
	filled_quantity TEXT,
	commission TEXT,
	error_message TEXT,
	blocked_reason TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_orders_signal ON execution_orders(signal_id);
` + "" // updated_at trigger is created by NewSignalStore

const executionLogsSchema = `
CREATE TABLE IF NOT EXISTS execution_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id INTEGER NOT NULL,
	event TEXT NOT NULL,
	detail TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SignalStore implements execution.SignalStore against sqlite.
type SignalStore struct {
	db *DB
}

func NewSignalStore(db *DB) *SignalStore {
	_, _ = db.Exec(executionLogsSchema)
	_, _ = db.Exec(execTrigger("execution_orders"))
	return &SignalStore{db: db}
}

func (s *SignalStore) CreateSignal(ctx context.Context, sig *types.Signal) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (strategy_name, symbol, side, entry_price, stop_loss, take_profit, position_size, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.StrategyName, sig.Symbol, sig.Side, decStr(sig.EntryPrice), decStr(sig.StopLoss),
		decStr(sig.TakeProfit), decStr(sig.PositionSize), sig.Status, sig.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sig.ID = id
	return nil
}

func (s *SignalStore) GetSignal(ctx context.Context, id int64) (*types.Signal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, strategy_name, symbol, side, entry_price, stop_loss, take_profit, position_size, status, created_at
		 FROM signals WHERE id = ?`, id)
	var sig types.Signal
	var side, status string
	var entryPrice, stopLoss, takeProfit, positionSize string
	if err := row.Scan(&sig.ID, &sig.StrategyName, &sig.Symbol, &side, &entryPrice, &stopLoss, &takeProfit, &positionSize, &status, &sig.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sig.Side = types.Side(side)
	sig.Status = types.SignalStatus(status)
	sig.EntryPrice = parseDec(entryPrice)
	sig.StopLoss = parseDec(stopLoss)
	sig.TakeProfit = parseDec(takeProfit)
	sig.PositionSize = parseDec(positionSize)
	return &sig, nil
}

// Save inserts or updates an execution order's row.
func (s *SignalStore) Save(ctx context.Context, order *types.ExecutionOrder) error {
	order.UpdatedAt = time.Now().UTC()
	if order.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO execution_orders (signal_id, client_order_id, broker_order_id, symbol, side, order_type, quantity, limit_price, stop_price, status, filled_price, filled_quantity, commission, error_message, blocked_reason, created_at, updated_at)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			order.SignalID, order.ClientOrderID, nullableString(order.BrokerOrderID), order.Symbol, order.Side,
			order.OrderType, decStr(order.Quantity), nullableString(decStr(order.LimitPrice)), nullableString(decStr(order.StopPrice)), order.Status,
			nullableString(decStr(order.FilledPrice)), nullableString(decStr(order.FilledQuantity)),
			nullableString(decStr(order.Commission)), nullableString(order.ErrorMessage), nullableString(order.BlockedReason),
			order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		order.ID = id
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE execution_orders SET broker_order_id=?, status=?, filled_price=?, filled_quantity=?, commission=?, error_message=?, blocked_reason=?, updated_at=? WHERE id=?`,
		nullableString(order.BrokerOrderID), order.Status, nullableString(decStr(order.FilledPrice)),
		nullableString(decStr(order.FilledQuantity)), nullableString(decStr(order.Commission)),
		nullableString(order.ErrorMessage), nullableString(order.BlockedReason), order.UpdatedAt, order.ID)
	return err
}

func (s *SignalStore) LogEvent(ctx context.Context, orderID int64, event, detail string) {
	_, _ = s.db.ExecContext(ctx, `INSERT INTO execution_logs (order_id, event, detail) VALUES (?, ?, ?)`, orderID, event, detail)
}

// GetOrder loads one execution order by its primary key.
func (s *SignalStore) GetOrder(ctx context.Context, id int64) (*types.ExecutionOrder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, signal_id, client_order_id, broker_order_id, symbol, side, order_type, quantity, limit_price, stop_price,
			status, filled_price, filled_quantity, commission, error_message, blocked_reason, created_at, updated_at
		 FROM execution_orders WHERE id = ?`, id)
	var o types.ExecutionOrder
	var side, orderType, status string
	var brokerOrderID, limitPrice, stopPrice, filledPrice, filledQty, commission, errMsg, blockedReason sql.NullString
	var quantity string
	if err := row.Scan(&o.ID, &o.SignalID, &o.ClientOrderID, &brokerOrderID, &o.Symbol, &side, &orderType, &quantity,
		&limitPrice, &stopPrice, &status, &filledPrice, &filledQty, &commission, &errMsg, &blockedReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	o.Side = types.Side(side)
	o.OrderType = types.OrderType(orderType)
	o.Status = types.OrderStatus(status)
	o.BrokerOrderID = brokerOrderID.String
	o.Quantity = parseDec(quantity)
	o.LimitPrice = parseDec(limitPrice.String)
	o.StopPrice = parseDec(stopPrice.String)
	o.FilledPrice = parseDec(filledPrice.String)
	o.FilledQuantity = parseDec(filledQty.String)
	o.Commission = parseDec(commission.String)
	o.ErrorMessage = errMsg.String
	o.BlockedReason = blockedReason.String
	return &o, nil
}
