// Package broker defines the uniform capability contract every broker
// backend (simulated, paper, live) implements, plus the Simulated Broker
// and Alpaca adapter implementations of it.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/types"
)

// OrderRequest is the broker-agnostic shape every adapter accepts.
type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          types.Side
	OrderType     types.OrderType
	Quantity      decimal.Decimal
	LimitPrice    decimal.Decimal
	StopPrice     decimal.Decimal
	StopLoss      decimal.Decimal
	TakeProfit    decimal.Decimal
}

// Validate checks the order shape is well-formed before any adapter
// ever sees it.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if r.Quantity.IsZero() || r.Quantity.IsNegative() {
		return fmt.Errorf("quantity must be positive")
	}
	if (r.OrderType == types.OrderLimit || r.OrderType == types.OrderStopLimit) && !r.LimitPrice.IsPositive() {
		return fmt.Errorf("limit price is required for %s orders", r.OrderType)
	}
	if (r.OrderType == types.OrderStop || r.OrderType == types.OrderStopLimit) && !r.StopPrice.IsPositive() {
		return fmt.Errorf("stop price is required for %s orders", r.OrderType)
	}
	return nil
}

// Result is the uniform envelope every adapter call returns.
type Result struct {
	Success        bool
	BrokerOrderID  string
	FilledPrice    decimal.Decimal
	FilledQuantity decimal.Decimal
	Commission     decimal.Decimal
	Error          string
	Raw            map[string]interface{}
	Timestamp      time.Time
}

// AccountInfo is the uniform account snapshot every adapter returns.
type AccountInfo struct {
	Balance         decimal.Decimal
	Equity          decimal.Decimal
	MarginUsed      decimal.Decimal
	MarginAvailable decimal.Decimal
	Currency        string
}

// Adapter is the capability contract every broker backend implements.
// Implementations: SimulatedAdapter (this package) and AlpacaAdapter
// (this package, REST-backed).
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SubmitOrder(ctx context.Context, order OrderRequest) (Result, error)
	CancelOrder(ctx context.Context, brokerOrderID string) (Result, error)
	GetOrderStatus(ctx context.Context, brokerOrderID string) (Result, error)
	GetPositions(ctx context.Context) ([]types.Position, error)
	GetPosition(ctx context.Context, symbol string) (*types.Position, error)
	GetAccountInfo(ctx context.Context) (AccountInfo, error)
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	HealthCheck(ctx context.Context) error
}
