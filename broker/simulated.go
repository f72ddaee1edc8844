package broker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradecore/logger"
	"tradecore/types"
)

const pipSize = "0.0001"

type quote struct {
	bid decimal.Decimal
	ask decimal.Decimal
}

// pendingOrder is a LIMIT/STOP/STOP_LIMIT order that hasn't triggered yet.
// It is re-evaluated against every subsequent SetPrice for its symbol until
// it fills or is cancelled.
type pendingOrder struct {
	order         OrderRequest
	brokerOrderID string
	createdAt     time.Time
}

// SimulatedAdapter fills orders against an in-process price book using
// configurable latency, slippage and fill-probability parameters. It
// never talks to a real venue; every number it returns is synthetic.
//
// Callers never hold mu while doing anything that could block (there
// is nothing network-bound here, but the shape is kept consistent with
// the other adapters so the lock-ordering rule in the concurrency model holds).
type SimulatedAdapter struct {
	mu        sync.Mutex
	account   types.SimulationAccount
	positions map[string]*types.Position
	pending   map[string]*pendingOrder
	quotes    map[string]quote
	nextOrder int64
	rng       *rand.Rand
}

func NewSimulatedAdapter(account types.SimulationAccount) *SimulatedAdapter {
	return &SimulatedAdapter{
		account:   account,
		positions: make(map[string]*types.Position),
		pending:   make(map[string]*pendingOrder),
		quotes:    make(map[string]quote),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SimulatedAdapter) Connect(ctx context.Context) error    { return nil }
func (s *SimulatedAdapter) Disconnect(ctx context.Context) error { return nil }
func (s *SimulatedAdapter) HealthCheck(ctx context.Context) error { return nil }

// SetPrice updates the book for a symbol, checks the open position at that
// symbol for a stop-loss or take-profit breach, then re-evaluates every
// pending order resting on the symbol against the new price.
func (s *SimulatedAdapter) SetPrice(symbol string, bid, ask decimal.Decimal) {
	s.mu.Lock()
	s.quotes[symbol] = quote{bid: bid, ask: ask}
	pos, hasPos := s.positions[symbol]
	s.mu.Unlock()

	if hasPos && pos.Open {
		s.checkStopAndTarget(pos, bid, ask)
	}
	s.checkPendingOrders(symbol)

	s.mu.Lock()
	s.recomputeEquityLocked()
	s.mu.Unlock()
}

// checkPendingOrders re-evaluates every resting order on symbol and fills
// whichever now satisfies its trigger condition. A fresh fill-probability
// roll applies on every re-evaluation, same as the initial submit attempt.
func (s *SimulatedAdapter) checkPendingOrders(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.pending {
		if p.order.Symbol != symbol {
			continue
		}
		if !s.checkFillProbability() {
			continue
		}
		price, err := s.fillPrice(symbol, p.order.Side)
		if err != nil {
			continue
		}
		if !orderShouldFill(p.order, price) {
			continue
		}
		commission := s.commission(p.order.Quantity)
		if p.order.Side == types.SideLong {
			margin := s.marginFor(price, p.order.Quantity)
			if margin.Add(commission).GreaterThan(s.account.MarginAvailable) {
				continue // still can't afford it; stays pending
			}
		}
		s.executeFill(p.order, price, commission)
		logger.Infof("simulated pending order %s filled symbol=%s price=%s", id, symbol, price)
		delete(s.pending, id)
	}
}

func (s *SimulatedAdapter) checkStopAndTarget(pos *types.Position, bid, ask decimal.Decimal) {
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	if pos.StopLoss.IsPositive() {
		breached := (pos.Side == types.SideLong && mid.LessThanOrEqual(pos.StopLoss)) ||
			(pos.Side == types.SideShort && mid.GreaterThanOrEqual(pos.StopLoss))
		if breached {
			s.closeAtMarket(pos, pos.StopLoss, types.ExitStopLoss)
			return
		}
	}
	if pos.TakeProfit.IsPositive() {
		breached := (pos.Side == types.SideLong && mid.GreaterThanOrEqual(pos.TakeProfit)) ||
			(pos.Side == types.SideShort && mid.LessThanOrEqual(pos.TakeProfit))
		if breached {
			s.closeAtMarket(pos, pos.TakeProfit, types.ExitTakeProfit)
		}
	}
}

func (s *SimulatedAdapter) closeAtMarket(pos *types.Position, price decimal.Decimal, reason types.ExitReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !pos.Open {
		return
	}
	pnl := s.unrealizedPnL(pos, price).Sub(s.commission(pos.PositionSize))
	pos.ExitPrice = price
	pos.ExitTime = time.Now().UTC()
	pos.ExitReason = reason
	pos.RealizedPnL = pnl
	pos.Open = false

	s.account.MarginUsed = s.account.MarginUsed.Sub(s.marginFor(price, pos.PositionSize))
	if s.account.MarginUsed.IsNegative() {
		s.account.MarginUsed = decimal.Zero
	}
	s.account.RecordTrade(pnl, pnl.IsPositive())
	s.recomputeEquityLocked()
	logger.Infof("simulated position closed symbol=%s reason=%s pnl=%s", pos.Symbol, reason, pnl)
}

func (s *SimulatedAdapter) unrealizedPnL(pos *types.Position, price decimal.Decimal) decimal.Decimal {
	diff := price.Sub(pos.EntryPrice)
	if pos.Side == types.SideShort {
		diff = diff.Neg()
	}
	return diff.Mul(pos.PositionSize)
}

// recomputeEquityLocked sums unrealized PnL across every open position at
// its last known quote and pushes the total into the account ledger.
// Caller holds s.mu.
func (s *SimulatedAdapter) recomputeEquityLocked() {
	total := decimal.Zero
	for symbol, pos := range s.positions {
		if !pos.Open {
			continue
		}
		q, ok := s.quotes[symbol]
		if !ok {
			continue
		}
		mid := q.bid.Add(q.ask).Div(decimal.NewFromInt(2))
		total = total.Add(s.unrealizedPnL(pos, mid))
	}
	s.account.UpdateEquity(total)
}

func (s *SimulatedAdapter) marginFor(price, qty decimal.Decimal) decimal.Decimal {
	notional := price.Mul(qty).Mul(decimal.NewFromInt(100000))
	return notional.Mul(decimal.NewFromFloat(0.01))
}

func (s *SimulatedAdapter) commission(qty decimal.Decimal) decimal.Decimal {
	return s.account.CommissionPerLot.Mul(qty)
}

func (s *SimulatedAdapter) simulateLatency(ctx context.Context) {
	jitter := 0.8 + s.rng.Float64()*0.4 // U(0.8, 1.2)
	d := time.Duration(float64(s.account.LatencyMs)*jitter) * time.Millisecond
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func (s *SimulatedAdapter) checkFillProbability() bool {
	p, _ := s.account.FillProbability.Float64()
	return s.rng.Float64() < p
}

func (s *SimulatedAdapter) fillPrice(symbol string, side types.Side) (decimal.Decimal, error) {
	q, ok := s.quotes[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for symbol %s", symbol)
	}
	base := q.bid
	if side == types.SideLong {
		base = q.ask
	}
	pip, _ := decimal.NewFromString(pipSize)
	slip := s.account.SlippagePips.Mul(decimal.NewFromFloat(s.rng.Float64())).Mul(pip)
	if side == types.SideLong {
		return base.Add(slip), nil // unfavorable: pay more
	}
	return base.Sub(slip), nil // unfavorable: receive less
}

// orderShouldFill applies the order-type gate at the given fill price.
// STOP_LIMIT needs both the stop trigger and the limit condition to hold
// independently — they are two distinct thresholds, not one.
func orderShouldFill(order OrderRequest, price decimal.Decimal) bool {
	switch order.OrderType {
	case types.OrderMarket:
		return true
	case types.OrderLimit:
		if order.Side == types.SideLong {
			return price.LessThanOrEqual(order.LimitPrice)
		}
		return price.GreaterThanOrEqual(order.LimitPrice)
	case types.OrderStop:
		if order.Side == types.SideLong {
			return price.GreaterThanOrEqual(order.StopPrice)
		}
		return price.LessThanOrEqual(order.StopPrice)
	case types.OrderStopLimit:
		var stopTriggered bool
		if order.Side == types.SideLong {
			stopTriggered = price.GreaterThanOrEqual(order.StopPrice)
		} else {
			stopTriggered = price.LessThanOrEqual(order.StopPrice)
		}
		if !stopTriggered {
			return false
		}
		if order.Side == types.SideLong {
			return price.LessThanOrEqual(order.LimitPrice)
		}
		return price.GreaterThanOrEqual(order.LimitPrice)
	default:
		return false
	}
}

func (s *SimulatedAdapter) SubmitOrder(ctx context.Context, order OrderRequest) (Result, error) {
	if err := order.Validate(); err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}

	s.simulateLatency(ctx)

	if !s.checkFillProbability() {
		return Result{Success: false, Error: "order not filled: fill probability gate", Timestamp: time.Now().UTC()}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	price, err := s.fillPrice(order.Symbol, order.Side)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}

	s.nextOrder++
	brokerOrderID := fmt.Sprintf("SIM-%d-%s", s.nextOrder, uuid.NewString()[:8])

	if !orderShouldFill(order, price) {
		s.pending[brokerOrderID] = &pendingOrder{order: order, brokerOrderID: brokerOrderID, createdAt: time.Now().UTC()}
		return Result{
			Success:       true,
			BrokerOrderID: brokerOrderID,
			Error:         "order pending: trigger not reached",
			Timestamp:     time.Now().UTC(),
		}, nil
	}

	commission := s.commission(order.Quantity)
	if order.Side == types.SideLong {
		margin := s.marginFor(price, order.Quantity)
		if margin.Add(commission).GreaterThan(s.account.MarginAvailable) {
			return Result{Success: false, Error: "insufficient margin"}, nil
		}
	}

	s.executeFill(order, price, commission)
	s.recomputeEquityLocked()

	return Result{
		Success:        true,
		BrokerOrderID:  brokerOrderID,
		FilledPrice:    price,
		FilledQuantity: order.Quantity,
		Commission:     commission,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// executeFill averages into an existing same-side position or realizes
// PnL on an opposite-side reduce/close. Caller holds s.mu.
func (s *SimulatedAdapter) executeFill(order OrderRequest, price, commission decimal.Decimal) {
	existing, has := s.positions[order.Symbol]

	if !has || !existing.Open {
		s.positions[order.Symbol] = &types.Position{
			Symbol:         order.Symbol,
			Side:           order.Side,
			EntryPrice:     price,
			StopLoss:       order.StopLoss,
			TakeProfit:     order.TakeProfit,
			PositionSize:   order.Quantity,
			CommissionPaid: commission,
			EntryTime:      time.Now().UTC(),
			Open:           true,
		}
		s.account.MarginUsed = s.account.MarginUsed.Add(s.marginFor(price, order.Quantity))
		s.account.Balance = s.account.Balance.Sub(commission)
		return
	}

	if existing.Side == order.Side {
		totalQty := existing.PositionSize.Add(order.Quantity)
		weighted := existing.EntryPrice.Mul(existing.PositionSize).Add(price.Mul(order.Quantity))
		existing.EntryPrice = weighted.Div(totalQty)
		existing.PositionSize = totalQty
		existing.CommissionPaid = existing.CommissionPaid.Add(commission)
		s.account.MarginUsed = s.account.MarginUsed.Add(s.marginFor(price, order.Quantity))
		s.account.Balance = s.account.Balance.Sub(commission)
		return
	}

	// Opposite side: reduce or close, realizing PnL on the closed portion.
	closedQty := decimal.Min(existing.PositionSize, order.Quantity)
	diff := price.Sub(existing.EntryPrice)
	if existing.Side == types.SideShort {
		diff = diff.Neg()
	}
	pnl := diff.Mul(closedQty).Sub(commission)
	if existing.PositionSize.Sub(closedQty).IsZero() {
		existing.ExitPrice = price
		existing.ExitTime = time.Now().UTC()
		existing.ExitReason = types.ExitManual
		existing.RealizedPnL = pnl
		existing.Open = false
		s.account.MarginUsed = s.account.MarginUsed.Sub(s.marginFor(existing.EntryPrice, closedQty))
	} else {
		existing.PositionSize = existing.PositionSize.Sub(closedQty)
	}
	s.account.RecordTrade(pnl, pnl.IsPositive())
}

func (s *SimulatedAdapter) CancelOrder(ctx context.Context, brokerOrderID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[brokerOrderID]; !ok {
		return Result{Success: false, Error: fmt.Sprintf("order %s not found or already filled", brokerOrderID)}, nil
	}
	delete(s.pending, brokerOrderID)
	return Result{Success: true, BrokerOrderID: brokerOrderID, Timestamp: time.Now().UTC()}, nil
}

func (s *SimulatedAdapter) GetOrderStatus(ctx context.Context, brokerOrderID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[brokerOrderID]; ok {
		return Result{Success: true, BrokerOrderID: brokerOrderID, Error: "pending"}, nil
	}
	return Result{Success: true, BrokerOrderID: brokerOrderID}, nil
}

func (s *SimulatedAdapter) GetPositions(ctx context.Context) ([]types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if p.Open {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *SimulatedAdapter) GetPosition(ctx context.Context, symbol string) (*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	if !ok || !p.Open {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *SimulatedAdapter) GetAccountInfo(ctx context.Context) (AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AccountInfo{
		Balance:         s.account.Balance,
		Equity:          s.account.Equity,
		MarginUsed:      s.account.MarginUsed,
		MarginAvailable: s.account.MarginAvailable,
		Currency:        s.account.Currency,
	}, nil
}

func (s *SimulatedAdapter) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for symbol %s", symbol)
	}
	return q.bid.Add(q.ask).Div(decimal.NewFromInt(2)), nil
}

// ResetAccount clears all positions and pending orders and restores the
// ledger to its initial balance, preserving simulation parameters.
func (s *SimulatedAdapter) ResetAccount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = make(map[string]*types.Position)
	s.pending = make(map[string]*pendingOrder)
	s.account.Reset()
}

func (s *SimulatedAdapter) AccountSnapshot() types.SimulationAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}
