// Command tradecore runs the trading kernel's HTTP surface: the
// Coordination Pipeline, Risk Validation Engine, Execution Engine, and
// Journal + Feedback Loop, wired together over a single sqlite database.
package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/api"
	"tradecore/apperr"
	"tradecore/broker"
	"tradecore/bus"
	"tradecore/config"
	"tradecore/coordination"
	"tradecore/execution"
	"tradecore/journal"
	"tradecore/logger"
	"tradecore/metrics"
	"tradecore/risk"
	"tradecore/settingssvc"
	"tradecore/store"
	"tradecore/types"
)

// noActiveOptimizationJobs reports that no optimization job is ever
// already running — optimization job scheduling itself is an external
// concern the feedback loop only avoids duplicating, never owns.
type noActiveOptimizationJobs struct{}

func (noActiveOptimizationJobs) HasActiveJob(strategyName, symbol string) (int64, bool) {
	return 0, false
}

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	metrics.Init()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	caps := risk.DefaultHardCaps()

	signalStore := store.NewSignalStore(db)
	riskStore := store.NewRiskStore(db)
	journalStore := store.NewJournalStore(db)
	feedbackStore := store.NewFeedbackDecisionStore(db)
	settingsStore := store.NewSettingsStore(db)
	cycleStore := store.NewCycleStore(db)
	messageStore := store.NewMessageStore(db)
	userStore := store.NewUserStore(db)

	validator := risk.NewValidator(caps)
	monitor := risk.NewMonitor(caps)
	engine := execution.NewEngine(signalStore, riskStore, validator, monitor)

	analyzer := journal.NewAnalyzer(journalStore)
	writer := journal.NewWriter(journalStore.Save)
	feedback := journal.NewFeedbackLoop(analyzer, riskStore, noActiveOptimizationJobs{}, feedbackStore.Save)

	settingsSvc := settingssvc.NewService(caps, settingsStore)

	messageBus := bus.NewBus(messageStore.Save)
	stateManager := coordination.NewStateManager()
	healthMonitor := coordination.NewHealthMonitor(cfg.HeartbeatTTL)
	pipeline := coordination.NewPipeline(stateManager, healthMonitor, messageBus, cfg.MessageTTL)

	simAccount := types.SimulationAccount{
		ID:               "sim-default",
		Balance:          decimal.RequireFromString("10000"),
		Equity:           decimal.RequireFromString("10000"),
		MarginAvailable:  decimal.RequireFromString("10000"),
		InitialBalance:   decimal.RequireFromString("10000"),
		Currency:         "USD",
		SlippagePips:     decimal.RequireFromString("1.5"),
		CommissionPerLot: decimal.RequireFromString("7"),
		LatencyMs:        150,
		FillProbability:  decimal.RequireFromString("0.98"),
	}
	simAdapter := broker.NewSimulatedAdapter(simAccount)

	var liveAdapter broker.Adapter
	if cfg.AlpacaAPIKey != "" {
		liveAdapter = broker.NewAlpacaAdapter(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey, cfg.AlpacaPaper)
	}
	activeAdapter := func() broker.Adapter {
		if settingsSvc.ExecutionMode() == types.ExecutionLive && liveAdapter != nil {
			return liveAdapter
		}
		return simAdapter
	}
	const accountID = "sim-default"

	// Strategy signal generation itself lives outside this kernel (no HTTP
	// route here creates signals); this phase just records that the cycle
	// looked for one and lets the rest of the pipeline proceed either way.
	pipeline.Strategy = func(ctx context.Context, cycle *types.CycleState) error {
		return stateManager.WriteSharedData("strategy", "strategy_status", "awaiting_external_signals")
	}
	pipeline.Risk = func(ctx context.Context, cycle *types.CycleState) error {
		account, err := riskStore.GetAccountState(accountID)
		if err != nil {
			return apperr.Internal(err, "load account risk state for cycle")
		}
		if account == nil {
			account = &types.AccountRiskState{AccountID: accountID}
		}
		if account.EmergencyShutdown {
			return apperr.RiskRejected("account %s is under emergency shutdown: %s", accountID, account.EmergencyReason)
		}
		return stateManager.WriteSharedData("risk", "risk_drawdown_percent", account.DrawdownPercent.String())
	}
	pipeline.Execution = func(ctx context.Context, cycle *types.CycleState) error {
		if err := activeAdapter().HealthCheck(ctx); err != nil {
			return apperr.Wrap(apperr.KindBrokerError, "broker health check failed", err)
		}
		return stateManager.WriteSharedData("execution", "execution_broker_status", "healthy")
	}
	pipeline.StartHeartbeatLoop(15 * time.Second)
	defer pipeline.Stop()

	srv := api.NewServer(cfg.JWTSecret)
	srv.DB = db
	srv.Users = userStore
	srv.Signals = signalStore
	srv.Risk = riskStore
	srv.Journal = journalStore
	srv.Feedback = feedbackStore
	srv.Settings = settingsStore
	srv.Cycles = cycleStore
	srv.Messages = messageStore
	srv.Validator = validator
	srv.Monitor = monitor
	srv.Engine = engine
	srv.Analyzer = analyzer
	srv.Writer = writer
	srv.Feedbk = feedback
	srv.SettingsSvc = settingsSvc
	srv.Bus = messageBus
	srv.State = stateManager
	srv.Health = healthMonitor
	srv.Pipeline = pipeline
	srv.SimAdapter = simAdapter
	srv.LiveAdapter = liveAdapter
	srv.AccountID = accountID
	srv.ActiveAdapter = activeAdapter

	router := srv.Router()
	logger.Infof("tradecore listening on %s", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		logger.Fatalf("http server: %v", err)
	}
}
