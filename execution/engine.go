// Package execution implements the Execution Engine: the single path
// from an approved signal to a broker order.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradecore/apperr"
	"tradecore/broker"
	"tradecore/logger"
	"tradecore/risk"
	"tradecore/types"
)

// SignalStore is the minimal persistence seam the engine needs.
type SignalStore interface {
	GetSignal(ctx context.Context, id int64) (*types.Signal, error)
	Save(ctx context.Context, order *types.ExecutionOrder) error
	LogEvent(ctx context.Context, orderID int64, event, detail string)
}

// DecisionStore persists the RiskDecision audit row the Validator produces
// for every Validate call, approved or rejected.
type DecisionStore interface {
	SaveDecision(d *types.RiskDecision) error
}

// Engine executes one signal at a time against whichever adapter the
// current ExecutionMode points at.
type Engine struct {
	Store     SignalStore
	Decisions DecisionStore
	Validator *risk.Validator
	Monitor   *risk.Monitor
}

func NewEngine(store SignalStore, decisions DecisionStore, validator *risk.Validator, monitor *risk.Monitor) *Engine {
	return &Engine{Store: store, Decisions: decisions, Validator: validator, Monitor: monitor}
}

// ExecutionResult is what ExecuteSignal returns to its caller — success
// covers both "filled" and "blocked by GUIDE mode", since both are
// well-formed non-error outcomes.
type ExecutionResult struct {
	Success       bool
	Order         *types.ExecutionOrder
	BlockedReason string
}

// ExecuteSignal runs the six-step pipeline: load signal, check strategy
// approval, validate risk, create the order record, gate on mode, then
// (AUTONOMOUS only) submit to the broker and record the outcome.
func (e *Engine) ExecuteSignal(
	ctx context.Context,
	signalID int64,
	mode types.Mode,
	account types.AccountRiskState,
	budget types.StrategyBudget,
	adapter broker.Adapter,
) (ExecutionResult, error) {
	signal, err := e.Store.GetSignal(ctx, signalID)
	if err != nil {
		return ExecutionResult{}, apperr.Internal(err, "load signal %d", signalID)
	}
	if signal == nil {
		return ExecutionResult{}, apperr.NotFound("signal %d not found", signalID)
	}

	if signal.Status == types.SignalCancelled || signal.Status == types.SignalExpired {
		return ExecutionResult{}, apperr.ModeBlocked("signal %d is %s, cannot execute", signalID, signal.Status)
	}
	if signal.Status == types.SignalExecuted {
		return ExecutionResult{}, apperr.ModeBlocked("signal %d already executed", signalID)
	}

	validation := e.Validator.Validate(*signal, account, budget)
	if err := e.Decisions.SaveDecision(e.Validator.Decision(validation, account, budget)); err != nil {
		logger.Errorf("save risk decision for signal %d: %v", signalID, err)
	}
	if !validation.Approved {
		return ExecutionResult{}, apperr.RiskRejected("%s", validation.Rejection.Error())
	}

	clientOrderID := fmt.Sprintf("%s-%d-%s", signal.StrategyName, signal.ID, uuid.NewString()[:8])
	order := &types.ExecutionOrder{
		SignalID:      signal.ID,
		ClientOrderID: clientOrderID,
		Symbol:        signal.Symbol,
		Side:          signal.Side,
		OrderType:     types.OrderMarket,
		Quantity:      validation.AdjustedSize,
		Status:        types.OrderPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	if mode == types.ModeGuide {
		order.Status = types.OrderRejected
		order.BlockedReason = "GUIDE mode - execution blocked"
		order.ErrorMessage = order.BlockedReason
		if err := e.Store.Save(ctx, order); err != nil {
			return ExecutionResult{}, apperr.Internal(err, "save blocked order")
		}
		return ExecutionResult{Success: true, Order: order, BlockedReason: order.BlockedReason}, nil
	}

	if err := adapter.Connect(ctx); err != nil {
		order.Status = types.OrderRejected
		order.ErrorMessage = err.Error()
		_ = e.Store.Save(ctx, order)
		return ExecutionResult{}, apperr.Wrap(apperr.KindBrokerError, "broker connect failed", err)
	}

	result, err := adapter.SubmitOrder(ctx, broker.OrderRequest{
		ClientOrderID: clientOrderID,
		Symbol:        signal.Symbol,
		Side:          signal.Side,
		OrderType:     types.OrderMarket,
		Quantity:      validation.AdjustedSize,
		StopLoss:      signal.StopLoss,
		TakeProfit:    signal.TakeProfit,
	})
	if err != nil || !result.Success {
		order.Status = types.OrderRejected
		order.ErrorMessage = errMessage(err, result.Error)
		_ = e.Store.Save(ctx, order)
		e.Store.LogEvent(ctx, order.ID, "rejected", order.ErrorMessage)
		return ExecutionResult{Success: false, Order: order}, nil
	}

	order.BrokerOrderID = result.BrokerOrderID
	order.FilledPrice = result.FilledPrice
	order.FilledQuantity = result.FilledQuantity
	order.Commission = result.Commission
	if result.FilledQuantity.IsPositive() {
		order.Status = types.OrderFilled
	} else {
		order.Status = types.OrderPending
	}
	order.UpdatedAt = time.Now().UTC()

	if err := e.Store.Save(ctx, order); err != nil {
		return ExecutionResult{}, apperr.Internal(err, "save filled order")
	}
	e.Store.LogEvent(ctx, order.ID, string(order.Status), "filled_price="+order.FilledPrice.String())
	logger.Infof("execution order %s filled for signal %d at %s", order.ClientOrderID, signal.ID, order.FilledPrice)

	return ExecutionResult{Success: true, Order: order}, nil
}

// CancelOrder cancels a pending order; already-filled orders cannot be cancelled.
func (e *Engine) CancelOrder(ctx context.Context, order *types.ExecutionOrder, adapter broker.Adapter) error {
	if order.Status != types.OrderPending && order.Status != types.OrderSubmitted {
		return apperr.ModeBlocked("order %s is %s, cannot cancel", order.ClientOrderID, order.Status)
	}
	res, err := adapter.CancelOrder(ctx, order.BrokerOrderID)
	if err != nil || !res.Success {
		return apperr.Wrap(apperr.KindBrokerError, "cancel failed", err)
	}
	order.Status = types.OrderCancelled
	order.UpdatedAt = time.Now().UTC()
	return e.Store.Save(ctx, order)
}

func errMessage(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
