// Package metrics exposes the kernel's prometheus metrics on a custom
// registry, registering each collector through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Registry = prometheus.NewRegistry()

var (
	CyclesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "coordination",
			Name:      "cycles_total",
			Help:      "Total coordination cycles by outcome",
		},
		[]string{"outcome"}, // completed, halted, failed
	)

	CycleDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tradecore",
			Subsystem: "coordination",
			Name:      "cycle_duration_seconds",
			Help:      "Coordination cycle duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	RiskRejectionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "risk",
			Name:      "rejections_total",
			Help:      "Risk validation rejections by check and severity",
		},
		[]string{"check", "severity"},
	)

	EmergencyShutdownsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "risk",
			Name:      "emergency_shutdowns_total",
			Help:      "Emergency shutdowns triggered, by account",
		},
		[]string{"account_id"},
	)

	AccountDrawdown = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "risk",
			Name:      "drawdown_percent",
			Help:      "Current drawdown percentage per account",
		},
		[]string{"account_id"},
	)

	OrdersTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "execution",
			Name:      "orders_total",
			Help:      "Execution orders by status",
		},
		[]string{"status"},
	)

	OrderLatency = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tradecore",
			Subsystem: "execution",
			Name:      "order_latency_seconds",
			Help:      "Time from signal approval to order result",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	AgentHealthy = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "coordination",
			Name:      "agent_healthy",
			Help:      "Whether an agent is currently healthy (1) or not (0)",
		},
		[]string{"agent"},
	)

	StrategyWinRate = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "journal",
			Name:      "strategy_win_rate",
			Help:      "Win rate percentage per strategy/symbol",
		},
		[]string{"strategy", "symbol"},
	)

	StrategyProfitFactor = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "journal",
			Name:      "strategy_profit_factor",
			Help:      "Profit factor per strategy/symbol",
		},
		[]string{"strategy", "symbol"},
	)

	FeedbackActionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "journal",
			Name:      "feedback_actions_total",
			Help:      "Feedback loop actions taken by recommendation",
		},
		[]string{"recommendation"},
	)

	SimulatedAccountEquity = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tradecore",
			Subsystem: "broker",
			Name:      "simulated_account_equity",
			Help:      "Equity of the simulated account",
		},
	)
)

// Init registers the standard process/go collectors alongside the
// domain metrics above.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

func RecordCycle(outcome string) {
	CyclesTotal.WithLabelValues(outcome).Inc()
}

func RecordRiskRejection(check, severity string) {
	RiskRejectionsTotal.WithLabelValues(check, severity).Inc()
}

func RecordEmergencyShutdown(accountID string) {
	EmergencyShutdownsTotal.WithLabelValues(accountID).Inc()
}

func SetAccountDrawdown(accountID string, pct float64) {
	AccountDrawdown.WithLabelValues(accountID).Set(pct)
}

func RecordOrder(status string) {
	OrdersTotal.WithLabelValues(status).Inc()
}

func SetAgentHealthy(agent string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	AgentHealthy.WithLabelValues(agent).Set(v)
}
