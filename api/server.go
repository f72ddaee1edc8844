// Package api exposes the kernel over HTTP with gin, grouping routes by
// component, one receiver per handler file.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradecore/apperr"
	"tradecore/broker"
	"tradecore/bus"
	"tradecore/coordination"
	"tradecore/execution"
	"tradecore/journal"
	"tradecore/risk"
	"tradecore/settingssvc"
	"tradecore/store"
)

// Server holds every service the HTTP surface dispatches into.
type Server struct {
	JWTSecret string

	DB       *store.DB
	Users    *store.UserStore
	Signals  *store.SignalStore
	Risk     *store.RiskStore
	Journal  *store.JournalStore
	Feedback *store.FeedbackDecisionStore
	Settings *store.SettingsStore
	Cycles   *store.CycleStore
	Messages *store.MessageStore

	Validator *risk.Validator
	Monitor   *risk.Monitor
	Engine    *execution.Engine
	Analyzer  *journal.Analyzer
	Writer    *journal.Writer
	Feedbk    *journal.FeedbackLoop
	SettingsSvc *settingssvc.Service

	Bus     *bus.Bus
	State   *coordination.StateManager
	Health  *coordination.HealthMonitor
	Pipeline *coordination.Pipeline

	SimAdapter    broker.Adapter
	LiveAdapter   broker.Adapter
	ActiveAdapter func() broker.Adapter // resolves the adapter for the current ExecutionMode

	AccountID string // single-account deployment; kept explicit for the multi-tenant Open Question
}

func NewServer(jwtSecret string) *Server {
	return &Server{JWTSecret: jwtSecret}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/health/live", s.handleHealthLive)
	r.GET("/health/ready", s.handleHealthReady)
	r.GET("/health/detailed", s.handleHealthDetailed)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/refresh", s.authMiddleware(), s.handleRefresh)
		authGroup.POST("/logout", s.handleLogout)
		authGroup.GET("/me", s.authMiddleware(), s.handleMe)
	}

	v1 := r.Group("/api/v1", s.authMiddleware())
	{
		v1.GET("/settings", s.handleGetSettings)
		v1.POST("/settings", s.handleUpdateSettings)
		v1.GET("/settings/mode", s.handleGetMode)
		v1.POST("/settings/mode", s.handleSetMode)
		v1.GET("/settings/audit", s.handleSettingsAudit)
		v1.GET("/settings/constants", s.handleSettingsConstants)

		v1.GET("/execution-mode", s.handleGetExecutionMode)
		v1.POST("/execution-mode", s.handleChangeExecutionMode)

		v1.POST("/execution/execute", s.handleExecute)
		v1.POST("/execution/cancel/:order_id", s.handleCancelOrder)
		v1.GET("/execution/orders/:id", s.handleGetOrder)
		v1.GET("/execution/logs/:order_id", s.handleOrderLogs)

		v1.POST("/risk/validate", s.handleRiskValidate)
		v1.GET("/risk/state", s.handleRiskState)
		v1.GET("/risk/budgets/:strategy/:symbol", s.handleRiskBudget)
		v1.GET("/risk/limits", s.handleRiskLimits)
		v1.GET("/risk/decisions", s.handleRiskDecisions)
		v1.POST("/risk/emergency/reset", s.handleRiskEmergencyReset)
		v1.POST("/risk/daily/reset", s.handleRiskDailyReset)
		v1.POST("/risk/strategy/enable", s.handleRiskStrategyEnable)

		v1.POST("/coordination/cycle", s.handleRunCycle)
		v1.POST("/coordination/halt", s.handleHaltCycle)
		v1.GET("/coordination/cycle/:id", s.handleGetCycle)
		v1.GET("/coordination/cycles", s.handleRecentCycles)
		v1.GET("/coordination/messages", s.handleMessages)
		v1.GET("/coordination/health", s.handleAgentHealth)
		v1.POST("/coordination/health/:agent/:action", s.handleAgentHealthAction)

		v1.GET("/journal/entries/:entry_id", s.handleJournalEntry)
		v1.GET("/journal/analyze/:strategy/:symbol", s.handleJournalAnalyze)
		v1.GET("/journal/metrics/:strategy/:symbol", s.handleJournalMetrics)
		v1.GET("/journal/underperformance/:strategy/:symbol", s.handleUnderperformance)
		v1.POST("/journal/feedback/:strategy/:symbol", s.handleFeedbackCycle)
		v1.POST("/journal/feedback/batch", s.handleFeedbackBatch)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logReq(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// writeError maps an apperr.Kind to its HTTP status code.
func writeError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindRiskRejected, apperr.KindModeBlocked:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindBrokerError:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": appErr.Message, "kind": appErr.Kind})
}

func reqCtx(c *gin.Context) context.Context {
	return c.Request.Context()
}
