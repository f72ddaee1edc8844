// Package strategy defines the boundary to the external signal
// producer. Strategy indicator math and signal generation are not part
// of this kernel — only the contract a producer must satisfy to hand a
// signal to the Coordination Pipeline's strategy phase.
package strategy

import (
	"context"

	"tradecore/types"
)

// SignalProducer is implemented by whatever external system generates
// trade signals (an indicator engine, an AI model, a manual desk). The
// kernel only consumes what it returns.
type SignalProducer interface {
	// GenerateSignals returns zero or more candidate signals for symbol
	// given the current cycle's shared context.
	GenerateSignals(ctx context.Context, symbol string, context map[string]interface{}) ([]types.Signal, error)
}
