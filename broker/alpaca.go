package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"tradecore/logger"
	"tradecore/types"
)

// AlpacaAdapter implements the Broker Adapter Contract against Alpaca's
// REST API. It is the kernel's one concrete non-simulated adapter,
// proving the contract works for more than the simulator.
type AlpacaAdapter struct {
	apiKey    string
	secretKey string
	baseURL   string
	client    *http.Client
}

func NewAlpacaAdapter(apiKey, secretKey string, paper bool) *AlpacaAdapter {
	baseURL := "https://api.alpaca.markets"
	if paper {
		baseURL = "https://paper-api.alpaca.markets"
	}
	return &AlpacaAdapter{
		apiKey:    apiKey,
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// maxTransportRetries bounds how many times doRequest retries a failed
// or 5xx Alpaca call before giving up.
const maxTransportRetries = 3

func (a *AlpacaAdapter) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	b := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 2 * time.Second, Factor: 2}
	var lastErr error
	for attempt := 0; attempt <= maxTransportRetries; attempt++ {
		if attempt > 0 {
			wait := b.Duration()
			logger.Warnf("alpaca %s %s: retry %d/%d after %s: %v", method, path, attempt, maxTransportRetries, wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		respBody, status, err := a.doRequestOnce(ctx, method, path, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		if status > 0 && status < 500 {
			return nil, err
		}
	}
	return nil, lastErr
}

func (a *AlpacaAdapter) doRequestOnce(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, fmt.Errorf("alpaca API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, resp.StatusCode, nil
}

func (a *AlpacaAdapter) Connect(ctx context.Context) error    { return a.HealthCheck(ctx) }
func (a *AlpacaAdapter) Disconnect(ctx context.Context) error { return nil }

func (a *AlpacaAdapter) HealthCheck(ctx context.Context) error {
	_, err := a.doRequest(ctx, "GET", "/v2/account", nil)
	return err
}

type alpacaOrderReq struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
	LimitPrice  string `json:"limit_price,omitempty"`
	ClientOrderID string `json:"client_order_id"`
}

func alpacaSide(side types.Side) string {
	if side == types.SideLong {
		return "buy"
	}
	return "sell"
}

func alpacaOrderType(t types.OrderType) string {
	switch t {
	case types.OrderLimit:
		return "limit"
	case types.OrderStop:
		return "stop"
	case types.OrderStopLimit:
		return "stop_limit"
	default:
		return "market"
	}
}

func (a *AlpacaAdapter) SubmitOrder(ctx context.Context, order OrderRequest) (Result, error) {
	if err := order.Validate(); err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}

	req := alpacaOrderReq{
		Symbol:        order.Symbol,
		Qty:           order.Quantity.String(),
		Side:          alpacaSide(order.Side),
		Type:          alpacaOrderType(order.OrderType),
		TimeInForce:   "day",
		ClientOrderID: order.ClientOrderID,
	}
	if order.LimitPrice.IsPositive() {
		req.LimitPrice = order.LimitPrice.String()
	}

	resp, err := a.doRequest(ctx, "POST", "/v2/orders", req)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}

	result := Result{Success: true, Raw: parsed, Timestamp: time.Now().UTC()}
	if id, ok := parsed["id"].(string); ok {
		result.BrokerOrderID = id
	}
	if fp, ok := parsed["filled_avg_price"].(string); ok && fp != "" {
		if d, err := decimal.NewFromString(fp); err == nil {
			result.FilledPrice = d
		}
	}
	if fq, ok := parsed["filled_qty"].(string); ok && fq != "" {
		if d, err := decimal.NewFromString(fq); err == nil {
			result.FilledQuantity = d
		}
	}

	logger.Infof("alpaca order submitted symbol=%s side=%s qty=%s", order.Symbol, req.Side, req.Qty)
	return result, nil
}

func (a *AlpacaAdapter) CancelOrder(ctx context.Context, brokerOrderID string) (Result, error) {
	_, err := a.doRequest(ctx, "DELETE", "/v2/orders/"+brokerOrderID, nil)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}
	return Result{Success: true, BrokerOrderID: brokerOrderID, Timestamp: time.Now().UTC()}, nil
}

func (a *AlpacaAdapter) GetOrderStatus(ctx context.Context, brokerOrderID string) (Result, error) {
	resp, err := a.doRequest(ctx, "GET", "/v2/orders/"+brokerOrderID, nil)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return Result{Success: false, Error: err.Error()}, err
	}
	return Result{Success: true, BrokerOrderID: brokerOrderID, Raw: parsed, Timestamp: time.Now().UTC()}, nil
}

func (a *AlpacaAdapter) GetPositions(ctx context.Context) ([]types.Position, error) {
	resp, err := a.doRequest(ctx, "GET", "/v2/positions", nil)
	if err != nil {
		return nil, err
	}
	var raw []map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}
	out := make([]types.Position, 0, len(raw))
	for _, r := range raw {
		out = append(out, alpacaPositionFromRaw(r))
	}
	return out, nil
}

func (a *AlpacaAdapter) GetPosition(ctx context.Context, symbol string) (*types.Position, error) {
	resp, err := a.doRequest(ctx, "GET", "/v2/positions/"+symbol, nil)
	if err != nil {
		return nil, nil // Alpaca 404s when there's no position; treat as "none"
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, fmt.Errorf("parse position: %w", err)
	}
	pos := alpacaPositionFromRaw(raw)
	return &pos, nil
}

func alpacaPositionFromRaw(r map[string]interface{}) types.Position {
	pos := types.Position{Open: true}
	if s, ok := r["symbol"].(string); ok {
		pos.Symbol = s
	}
	if side, ok := r["side"].(string); ok && side == "short" {
		pos.Side = types.SideShort
	} else {
		pos.Side = types.SideLong
	}
	if v, ok := r["avg_entry_price"].(string); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			pos.EntryPrice = d
		}
	}
	if v, ok := r["qty"].(string); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			pos.PositionSize = d.Abs()
		}
	}
	if v, ok := r["unrealized_pl"].(string); ok {
		if d, err := decimal.NewFromString(v); err == nil {
			pos.UnrealizedPnL = d
		}
	}
	return pos
}

func (a *AlpacaAdapter) GetAccountInfo(ctx context.Context) (AccountInfo, error) {
	resp, err := a.doRequest(ctx, "GET", "/v2/account", nil)
	if err != nil {
		return AccountInfo{}, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return AccountInfo{}, fmt.Errorf("parse account: %w", err)
	}

	info := AccountInfo{Currency: "USD"}
	if v, ok := raw["equity"].(string); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			info.Equity = decimal.NewFromFloat(f)
		}
	}
	if v, ok := raw["cash"].(string); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			info.Balance = decimal.NewFromFloat(f)
		}
	}
	if v, ok := raw["buying_power"].(string); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			info.MarginAvailable = decimal.NewFromFloat(f)
		}
	}
	info.MarginUsed = info.Equity.Sub(info.MarginAvailable)
	logger.Infof("alpaca account fetched equity=%s buying_power=%s", info.Equity, info.MarginAvailable)
	return info, nil
}

func (a *AlpacaAdapter) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := a.doRequest(ctx, "GET", "/v2/stocks/"+symbol+"/trades/latest", nil)
	if err != nil {
		return decimal.Zero, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("parse trade: %w", err)
	}
	trade, ok := raw["trade"].(map[string]interface{})
	if !ok {
		return decimal.Zero, fmt.Errorf("no trade data for %s", symbol)
	}
	price, ok := trade["p"].(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("no price in trade data for %s", symbol)
	}
	return decimal.NewFromFloat(price), nil
}
