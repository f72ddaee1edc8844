// Package types holds the shared data model for the trading kernel:
// signals, positions, risk state, coordination state, messages, journal
// entries, and execution orders. Monetary and price fields use
// decimal.Decimal rather than float64 so percentage and PnL math never
// accumulates binary-fraction rounding error.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode gates whether the Execution Engine is allowed to reach a broker.
type Mode string

const (
	ModeGuide      Mode = "guide"
	ModeAutonomous Mode = "autonomous"
)

// ExecutionMode selects which broker backend orders are routed to.
type ExecutionMode string

const (
	ExecutionSimulation ExecutionMode = "simulation"
	ExecutionPaper      ExecutionMode = "paper"
	ExecutionLive       ExecutionMode = "live"
)

type Severity string

const (
	SeverityEmergency Severity = "emergency"
	SeverityCritical  Severity = "critical"
	SeverityWarning   Severity = "warning"
	SeverityInfo      Severity = "info"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

type SignalStatus string

const (
	SignalPending   SignalStatus = "pending"
	SignalApproved  SignalStatus = "approved"
	SignalRejected  SignalStatus = "rejected"
	SignalExecuted  SignalStatus = "executed"
	SignalCancelled SignalStatus = "cancelled"
	SignalExpired   SignalStatus = "expired"
)

// Signal is a trade proposal emitted by an external strategy producer.
// Strategy signal generation itself is out of scope for this kernel —
// see the strategy package for the interface it arrives through.
type Signal struct {
	ID             int64
	StrategyName   string
	Symbol         string
	Side           Side
	EntryPrice     decimal.Decimal
	StopLoss       decimal.Decimal
	TakeProfit     decimal.Decimal
	PositionSize   decimal.Decimal
	RiskPercent    decimal.Decimal
	RiskRewardRatio decimal.Decimal
	Timeframe      string
	Status         SignalStatus
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// ExitReason records why a position was closed. Set explicitly by the
// component that closes the position rather than inferred afterward by
// comparing exit price to stop loss / take profit.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "sl"
	ExitTakeProfit ExitReason = "tp"
	ExitManual     ExitReason = "manual"
)

// Position is an open or closed holding in one symbol for one strategy.
type Position struct {
	ID             int64
	StrategyName   string
	Symbol         string
	Side           Side
	EntryPrice     decimal.Decimal
	StopLoss       decimal.Decimal
	TakeProfit     decimal.Decimal
	PositionSize   decimal.Decimal
	CommissionPaid decimal.Decimal
	EntryTime      time.Time

	ExitPrice    decimal.Decimal
	ExitTime     time.Time
	ExitReason   ExitReason
	RealizedPnL  decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Open         bool
}

// AccountRiskState is the Risk Monitor's rolling view of one account.
type AccountRiskState struct {
	AccountID            string
	Balance              decimal.Decimal
	Equity               decimal.Decimal
	PeakBalance          decimal.Decimal
	DrawdownPercent      decimal.Decimal
	DailyPnL             decimal.Decimal
	DailyLossPercent     decimal.Decimal
	TradesToday          int
	TradesThisHour       int
	OpenPositions        int
	TotalExposure        decimal.Decimal
	EmergencyShutdown    bool
	EmergencyReason      string
	LastTradeAt          time.Time
	DayResetAt           time.Time
	HourResetAt          time.Time
}

// StrategyBudget is the per-strategy risk allowance and health tracker.
type StrategyBudget struct {
	StrategyName      string
	Symbol            string
	MaxRiskPercent    decimal.Decimal
	DailyPnL          decimal.Decimal
	ConsecutiveLosses int
	MaxConsecutiveLosses int
	IsEnabled         bool
	DisabledReason    string
	LastUpdated       time.Time
}

// HardCaps are the immutable, code-defined risk ceilings. They can only
// be tightened by soft limits in Settings, never loosened — see
// settingssvc for the invariant that enforces soft <= hard.
type HardCaps struct {
	MaxRiskPerTradePercent    decimal.Decimal
	MaxPositionSizeLots       decimal.Decimal
	MaxOpenPositions          int
	MaxDailyLossPercent       decimal.Decimal
	EmergencyDrawdownPercent  decimal.Decimal
	MaxTradesPerDay           int
	MaxTradesPerHour          int
	MaxRiskPerStrategyPercent decimal.Decimal
	MinRiskRewardRatio        decimal.Decimal
}

// Phase is a step in the Coordination Pipeline's cycle state machine.
type Phase string

const (
	PhaseInitializing    Phase = "initializing"
	PhaseStrategyAnalysis Phase = "strategy_analysis"
	PhaseRiskValidation  Phase = "risk_validation"
	PhaseExecution       Phase = "execution"
	PhaseCompleted       Phase = "completed"
	PhaseHalted          Phase = "halted"
	PhaseFailed          Phase = "failed"
)

type AgentStatus string

const (
	AgentPending AgentStatus = "pending"
	AgentActive  AgentStatus = "active"
	AgentDone    AgentStatus = "done"
	AgentFailed  AgentStatus = "failed"
)

// CycleState is the shared, access-controlled state for one coordination
// cycle.
type CycleState struct {
	CycleID       string
	Symbol        string
	Phase         Phase
	ActiveAgents  map[string]AgentStatus
	SharedData    map[string]interface{}
	HaltRequested bool
	HaltReason    string
	Errors        []string
	StartedAt     time.Time
	CompletedAt   time.Time
}

type Priority int

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityNormal   Priority = 2
	PriorityLow      Priority = 3
)

type MessageType string

const (
	MessageCommand  MessageType = "command"
	MessageResponse MessageType = "response"
	MessageHalt     MessageType = "halt"
	MessageInfo     MessageType = "info"
)

// Message is one entry on the inter-agent Message Bus.
type Message struct {
	ID          int64
	CycleID     string
	FromAgent   string
	ToAgent     string
	Type        MessageType
	Priority    Priority
	Payload     map[string]interface{}
	SentAt      time.Time
	ExpiresAt   *time.Time
	Processed   bool
	ResponseToID *int64
}

// AgentHealth is the Health Monitor's running view of one agent.
type AgentHealth struct {
	AgentName       string
	IsHealthy       bool
	LastHeartbeat   time.Time
	AvgResponseMs   float64
	TotalOps        int64
	SuccessCount    int64
	ErrorCount      int64
}

type TradeSource string

const (
	SourceBacktest TradeSource = "backtest"
	SourceLive     TradeSource = "live"
	SourcePaper    TradeSource = "paper"
)

// JournalEntry is one immutable, append-only trade record.
type JournalEntry struct {
	ID               int64
	EntryID          string
	Source           TradeSource
	StrategyName     string
	StrategyConfig   map[string]interface{}
	Symbol           string
	Timeframe        string
	Side             Side
	EntryPrice       decimal.Decimal
	ExitPrice        decimal.Decimal
	PositionSize     decimal.Decimal
	StopLoss         decimal.Decimal
	TakeProfit       decimal.Decimal
	RiskPercent      decimal.Decimal
	RiskRewardRatio  decimal.Decimal
	PnL              decimal.Decimal
	PnLPercent       decimal.Decimal
	IsWinner         bool
	ExitReason       ExitReason
	Commission       decimal.Decimal
	MarketContext    map[string]interface{}
	EntryTime        time.Time
	ExitTime         time.Time
	DurationMinutes  int
	BacktestID       string
	ExecutionOrderID int64
	SignalID         int64
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderSubmitted OrderStatus = "submitted"
	OrderFilled    OrderStatus = "filled"
	OrderRejected  OrderStatus = "rejected"
	OrderCancelled OrderStatus = "cancelled"
)

type OrderType string

const (
	OrderMarket    OrderType = "market"
	OrderLimit     OrderType = "limit"
	OrderStop      OrderType = "stop"
	OrderStopLimit OrderType = "stop_limit"
)

// ExecutionOrder is the Execution Engine's record of one order attempt.
type ExecutionOrder struct {
	ID             int64
	SignalID       int64
	ClientOrderID  string
	BrokerOrderID  string
	Symbol         string
	Side           Side
	OrderType      OrderType
	Quantity       decimal.Decimal
	LimitPrice     decimal.Decimal
	StopPrice      decimal.Decimal
	Status         OrderStatus
	FilledPrice    decimal.Decimal
	FilledQuantity decimal.Decimal
	Commission     decimal.Decimal
	ErrorMessage   string
	BlockedReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SimulationAccount is the Simulated Broker's paper account ledger.
type SimulationAccount struct {
	ID                string
	Balance           decimal.Decimal
	Equity            decimal.Decimal
	MarginUsed        decimal.Decimal
	MarginAvailable   decimal.Decimal
	InitialBalance    decimal.Decimal
	Currency          string
	SlippagePips      decimal.Decimal
	CommissionPerLot  decimal.Decimal
	LatencyMs         int
	FillProbability   decimal.Decimal
	TotalPnL          decimal.Decimal
	TotalTrades       int
	WinningTrades     int
	LastResetAt       time.Time
}

// WinRate returns winning_trades / total_trades as a percentage, 0 if no trades.
func (a *SimulationAccount) WinRate() decimal.Decimal {
	if a.TotalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(a.WinningTrades)).
		Div(decimal.NewFromInt(int64(a.TotalTrades))).
		Mul(decimal.NewFromInt(100))
}

// Reset restores the account to its initial state, preserving the
// simulation parameters (slippage, commission, latency, fill probability).
func (a *SimulationAccount) Reset() {
	a.Balance = a.InitialBalance
	a.Equity = a.InitialBalance
	a.MarginUsed = decimal.Zero
	a.MarginAvailable = a.InitialBalance
	a.TotalPnL = decimal.Zero
	a.TotalTrades = 0
	a.WinningTrades = 0
	a.LastResetAt = time.Now().UTC()
}

// UpdateEquity recomputes equity/margin_available from unrealized PnL.
func (a *SimulationAccount) UpdateEquity(unrealizedPnL decimal.Decimal) {
	a.Equity = a.Balance.Add(unrealizedPnL)
	a.MarginAvailable = a.Equity.Sub(a.MarginUsed)
}

// RecordTrade applies a closed trade's realized PnL to the ledger.
func (a *SimulationAccount) RecordTrade(pnl decimal.Decimal, isWinner bool) {
	a.Balance = a.Balance.Add(pnl)
	a.TotalPnL = a.TotalPnL.Add(pnl)
	a.TotalTrades++
	if isWinner {
		a.WinningTrades++
	}
	a.UpdateEquity(decimal.Zero)
}

// SettingsAudit records every change to a system setting.
type SettingsAudit struct {
	ID         int64
	Key        string
	OldValue   string
	NewValue   string
	ChangedBy  string
	Reason     string
	CreatedAt  time.Time
}

// RiskDecision is the audit row the Risk Validator writes for every
// single invocation, approved or rejected: the caller always gets a
// reason, and the ledger always gets a row.
type RiskDecision struct {
	ID             int64
	SubjectType    string // "signal", currently the only subject the validator sees
	SubjectID      int64
	AccountID      string
	Approved       bool
	Check          string
	Severity       Severity
	Reason         string
	LimitsSnapshot string // JSON: hard caps + account + budget at decision time
	CreatedAt      time.Time
}

// ExecutionModeAudit records every execution-mode transition, including
// the LIVE-mode confirmation fields carried over from the prior system.
type ExecutionModeAudit struct {
	ID                  int64
	OldMode             ExecutionMode
	NewMode             ExecutionMode
	Reason              string
	IPAddress           string
	UserAgent           string
	ConfirmationRequired bool
	PasswordVerified    bool
	HadOpenPositions    bool
	PositionsCancelled  int
	CreatedAt           time.Time
}
