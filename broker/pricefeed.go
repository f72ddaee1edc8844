package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"tradecore/logger"
)

// PriceSink is anything that accepts a vendor tick, typically the
// Simulated Broker's SetPrice so a live deployment can drive it from
// a real feed instead of tests calling SetPrice directly.
type PriceSink interface {
	SetPrice(symbol string, bid, ask decimal.Decimal)
}

// tick is the vendor wire shape this feed expects: one JSON object per
// websocket message carrying a symbol and its current bid/ask.
type tick struct {
	Symbol string `json:"symbol"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
}

// PriceFeed subscribes to a vendor websocket endpoint and forwards each
// tick into a PriceSink, reconnecting with exponential backoff when the
// connection drops.
type PriceFeed struct {
	url    string
	sink   PriceSink
	dialer *websocket.Dialer
}

func NewPriceFeed(url string, sink PriceSink) *PriceFeed {
	return &PriceFeed{url: url, sink: sink, dialer: websocket.DefaultDialer}
}

// Run connects and forwards ticks until ctx is cancelled, reconnecting
// on any read or dial error with a capped exponential backoff.
func (f *PriceFeed) Run(ctx context.Context) error {
	b := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Jitter: true}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.runOnce(ctx); err != nil {
			wait := b.Duration()
			logger.Warnf("price feed %s disconnected: %v, reconnecting in %s", f.url, err, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		b.Reset()
	}
}

func (f *PriceFeed) runOnce(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var t tick
		if err := json.Unmarshal(raw, &t); err != nil {
			logger.Warnf("price feed %s: malformed tick: %v", f.url, err)
			continue
		}
		bid, err := decimal.NewFromString(t.Bid)
		if err != nil {
			continue
		}
		ask, err := decimal.NewFromString(t.Ask)
		if err != nil {
			continue
		}
		f.sink.SetPrice(t.Symbol, bid, ask)
	}
}
