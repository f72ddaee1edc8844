package broker

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/types"
)

func testAccount() types.SimulationAccount {
	return types.SimulationAccount{
		ID:               "sim-test",
		Balance:          decimal.NewFromInt(10000),
		Equity:           decimal.NewFromInt(10000),
		MarginAvailable:  decimal.NewFromInt(10000),
		InitialBalance:   decimal.NewFromInt(10000),
		Currency:         "USD",
		SlippagePips:     decimal.Zero,
		CommissionPerLot: decimal.NewFromInt(5),
		LatencyMs:        0,
		FillProbability:  decimal.NewFromInt(1),
	}
}

func TestSubmitOrderFillsAndOpensPosition(t *testing.T) {
	a := NewSimulatedAdapter(testAccount())
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.1002))

	result, err := a.SubmitOrder(context.Background(), OrderRequest{
		ClientOrderID: "c-1",
		Symbol:        "EURUSD",
		Side:          types.SideLong,
		OrderType:     types.OrderMarket,
		Quantity:      decimal.NewFromInt(1),
		StopLoss:      decimal.NewFromFloat(1.0950),
		TakeProfit:    decimal.NewFromFloat(1.1100),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.FilledPrice.Equal(decimal.NewFromFloat(1.1002)), "long fills at ask with zero slippage")

	pos, err := a.GetPosition(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, pos.Open)
	assert.Equal(t, types.SideLong, pos.Side)
}

func TestSetPriceClosesPositionOnStopLoss(t *testing.T) {
	a := NewSimulatedAdapter(testAccount())
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.1002))

	_, err := a.SubmitOrder(context.Background(), OrderRequest{
		Symbol:     "EURUSD",
		Side:       types.SideLong,
		OrderType:  types.OrderMarket,
		Quantity:   decimal.NewFromInt(1),
		StopLoss:   decimal.NewFromFloat(1.0950),
		TakeProfit: decimal.NewFromFloat(1.1100),
	})
	require.NoError(t, err)

	a.SetPrice("EURUSD", decimal.NewFromFloat(1.0948), decimal.NewFromFloat(1.0950))

	pos, err := a.GetPosition(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Nil(t, pos, "stopped-out position is no longer open")
}

func TestSubmitOrderRejectsInsufficientMargin(t *testing.T) {
	account := testAccount()
	account.MarginAvailable = decimal.NewFromInt(1)
	a := NewSimulatedAdapter(account)
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.1002))

	result, err := a.SubmitOrder(context.Background(), OrderRequest{
		Symbol:    "EURUSD",
		Side:      types.SideLong,
		OrderType: types.OrderMarket,
		Quantity:  decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "insufficient margin")
}

func TestSubmitOrderRejectsInvalidRequest(t *testing.T) {
	a := NewSimulatedAdapter(testAccount())
	_, err := a.SubmitOrder(context.Background(), OrderRequest{Symbol: "", Quantity: decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestSubmitOrderLimitRestsPendingThenFillsOnPriceUpdate(t *testing.T) {
	a := NewSimulatedAdapter(testAccount())
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.1002))

	result, err := a.SubmitOrder(context.Background(), OrderRequest{
		Symbol:     "EURUSD",
		Side:       types.SideLong,
		OrderType:  types.OrderLimit,
		Quantity:   decimal.NewFromInt(1),
		LimitPrice: decimal.NewFromFloat(1.0900), // below ask, won't fill yet
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.FilledQuantity.IsZero(), "rests pending, doesn't fill immediately")

	pos, err := a.GetPosition(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Nil(t, pos, "no position until the limit triggers")

	a.SetPrice("EURUSD", decimal.NewFromFloat(1.0898), decimal.NewFromFloat(1.0900))

	pos, err = a.GetPosition(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, pos, "pending order fills once price re-evaluation crosses the limit")
	assert.True(t, pos.Open)
}

func TestSubmitOrderStopLimitNeedsBothThresholds(t *testing.T) {
	a := NewSimulatedAdapter(testAccount())
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.1002))

	_, err := a.SubmitOrder(context.Background(), OrderRequest{
		Symbol:     "EURUSD",
		Side:       types.SideLong,
		OrderType:  types.OrderStopLimit,
		Quantity:   decimal.NewFromInt(1),
		StopPrice:  decimal.NewFromFloat(1.1050),
		LimitPrice: decimal.NewFromFloat(1.1060),
	})
	require.NoError(t, err)

	// Stop triggers (price >= 1.1050) but limit condition fails (price > 1.1060).
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1070), decimal.NewFromFloat(1.1072))
	pos, err := a.GetPosition(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Nil(t, pos, "stop triggered but limit not satisfied, order stays pending")

	// Now both the stop and the limit condition hold.
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1055), decimal.NewFromFloat(1.1057))
	pos, err = a.GetPosition(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, pos, "both stop and limit thresholds satisfied")
}

func TestSubmitOrderMarginCheckIncludesCommission(t *testing.T) {
	account := testAccount()
	// Margin for 1 lot at ~1.1002 is ~1100.2; leave just enough for margin
	// but not for margin + commission, to prove commission counts.
	account.MarginAvailable = decimal.NewFromFloat(1101)
	account.CommissionPerLot = decimal.NewFromInt(5)
	a := NewSimulatedAdapter(account)
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.1002))

	result, err := a.SubmitOrder(context.Background(), OrderRequest{
		Symbol:    "EURUSD",
		Side:      types.SideLong,
		OrderType: types.OrderMarket,
		Quantity:  decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.False(t, result.Success, "margin + commission together exceed margin available")
}

func TestSetPriceRecomputesEquityFromUnrealizedPnL(t *testing.T) {
	a := NewSimulatedAdapter(testAccount())
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.1002))

	_, err := a.SubmitOrder(context.Background(), OrderRequest{
		Symbol: "EURUSD", Side: types.SideLong, OrderType: types.OrderMarket, Quantity: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1050), decimal.NewFromFloat(1.1052))

	snap := a.AccountSnapshot()
	// unrealized pnl = (mid - entry) * qty = (1.1051 - 1.1002) * 1 = 0.0049
	expectedEquity := snap.Balance.Add(decimal.NewFromFloat(1.1051).Sub(decimal.NewFromFloat(1.1002)))
	assert.True(t, snap.Equity.Sub(expectedEquity).Abs().LessThan(decimal.NewFromFloat(0.000001)))
}

func TestCancelOrderCancelsPendingOrder(t *testing.T) {
	a := NewSimulatedAdapter(testAccount())
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.1002))

	result, err := a.SubmitOrder(context.Background(), OrderRequest{
		Symbol:     "EURUSD",
		Side:       types.SideLong,
		OrderType:  types.OrderLimit,
		Quantity:   decimal.NewFromInt(1),
		LimitPrice: decimal.NewFromFloat(1.0900),
	})
	require.NoError(t, err)
	require.True(t, result.FilledQuantity.IsZero())

	cancel, err := a.CancelOrder(context.Background(), result.BrokerOrderID)
	require.NoError(t, err)
	assert.True(t, cancel.Success)

	a.SetPrice("EURUSD", decimal.NewFromFloat(1.0898), decimal.NewFromFloat(1.0900))
	pos, err := a.GetPosition(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Nil(t, pos, "cancelled order never fills")
}

func TestResetAccountClearsPositionsAndBalance(t *testing.T) {
	a := NewSimulatedAdapter(testAccount())
	a.SetPrice("EURUSD", decimal.NewFromFloat(1.1000), decimal.NewFromFloat(1.1002))
	_, err := a.SubmitOrder(context.Background(), OrderRequest{
		Symbol: "EURUSD", Side: types.SideLong, OrderType: types.OrderMarket, Quantity: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	a.ResetAccount()

	positions, err := a.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
	snap := a.AccountSnapshot()
	assert.True(t, snap.Balance.Equal(snap.InitialBalance))
}
