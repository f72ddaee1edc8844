package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradecore/apperr"
	"tradecore/types"
)

type validateRequest struct {
	StrategyName string `json:"strategy_name" binding:"required"`
	Symbol       string `json:"symbol" binding:"required"`
	Side         string `json:"side" binding:"required"`
	EntryPrice   string `json:"entry_price" binding:"required"`
	StopLoss     string `json:"stop_loss" binding:"required"`
	TakeProfit   string `json:"take_profit" binding:"required"`
	PositionSize string `json:"position_size" binding:"required"`
	RiskPercent  string `json:"risk_percent" binding:"required"`
}

func (s *Server) handleRiskValidate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	signal := types.Signal{
		StrategyName: req.StrategyName,
		Symbol:       req.Symbol,
		Side:         types.Side(req.Side),
		EntryPrice:   parseDecOr(req.EntryPrice, decimal.Zero),
		StopLoss:     parseDecOr(req.StopLoss, decimal.Zero),
		TakeProfit:   parseDecOr(req.TakeProfit, decimal.Zero),
		PositionSize: parseDecOr(req.PositionSize, decimal.Zero),
		RiskPercent:  parseDecOr(req.RiskPercent, decimal.Zero),
		Status:       types.SignalPending,
		CreatedAt:    time.Now().UTC(),
	}

	account, err := s.Risk.GetAccountState(s.AccountID)
	if err != nil {
		writeError(c, apperr.Internal(err, "load account risk state"))
		return
	}
	if account == nil {
		account = &types.AccountRiskState{AccountID: s.AccountID}
	}
	budget, err := s.Risk.GetBudget(req.StrategyName, req.Symbol)
	if err != nil {
		writeError(c, apperr.Internal(err, "load strategy budget"))
		return
	}
	if budget == nil {
		budget = &types.StrategyBudget{StrategyName: req.StrategyName, Symbol: req.Symbol, IsEnabled: true}
	}

	result := s.Validator.Validate(signal, *account, *budget)
	if result.TriggeredHalt {
		s.Monitor.TriggerEmergencyShutdown(account, result.Rejection.Message)
		_ = s.Risk.SaveAccountState(account)
	}
	if err := s.Risk.SaveDecision(s.Validator.Decision(result, *account, *budget)); err != nil {
		writeError(c, apperr.Internal(err, "save risk decision"))
		return
	}

	resp := gin.H{"approved": result.Approved, "adjusted_size": result.AdjustedSize}
	if !result.Approved {
		resp["check"] = result.Rejection.Check
		resp["severity"] = result.Rejection.Severity
		resp["reason"] = result.Rejection.Message
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRiskState(c *gin.Context) {
	account, err := s.Risk.GetAccountState(s.AccountID)
	if err != nil {
		writeError(c, apperr.Internal(err, "load account risk state"))
		return
	}
	if account == nil {
		writeError(c, apperr.NotFound("no risk state recorded for account %s", s.AccountID))
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) handleRiskBudget(c *gin.Context) {
	budget, err := s.Risk.GetBudget(c.Param("strategy"), c.Param("symbol"))
	if err != nil {
		writeError(c, apperr.Internal(err, "load strategy budget"))
		return
	}
	if budget == nil {
		writeError(c, apperr.NotFound("no budget recorded for %s/%s", c.Param("strategy"), c.Param("symbol")))
		return
	}
	c.JSON(http.StatusOK, budget)
}

func (s *Server) handleRiskLimits(c *gin.Context) {
	c.JSON(http.StatusOK, s.Validator.Caps)
}

func (s *Server) handleRiskDecisions(c *gin.Context) {
	decisions, err := s.Risk.ListDecisions(100)
	if err != nil {
		writeError(c, apperr.Internal(err, "list risk decisions"))
		return
	}
	c.JSON(http.StatusOK, decisions)
}

func (s *Server) handleRiskEmergencyReset(c *gin.Context) {
	account, err := s.Risk.GetAccountState(s.AccountID)
	if err != nil || account == nil {
		writeError(c, apperr.NotFound("no risk state recorded for account %s", s.AccountID))
		return
	}
	s.Monitor.ResetEmergencyShutdown(account)
	if err := s.Risk.SaveAccountState(account); err != nil {
		writeError(c, apperr.Internal(err, "save account risk state"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "emergency shutdown cleared"})
}

func (s *Server) handleRiskDailyReset(c *gin.Context) {
	account, err := s.Risk.GetAccountState(s.AccountID)
	if err != nil || account == nil {
		writeError(c, apperr.NotFound("no risk state recorded for account %s", s.AccountID))
		return
	}
	s.Monitor.ResetDailyMetrics(account, nil, time.Now().UTC())
	if err := s.Risk.SaveAccountState(account); err != nil {
		writeError(c, apperr.Internal(err, "save account risk state"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "daily metrics reset"})
}

type enableStrategyRequest struct {
	StrategyName string `json:"strategy_name" binding:"required"`
	Symbol       string `json:"symbol" binding:"required"`
}

func (s *Server) handleRiskStrategyEnable(c *gin.Context) {
	var req enableStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	budget, err := s.Risk.GetBudget(req.StrategyName, req.Symbol)
	if err != nil {
		writeError(c, apperr.Internal(err, "load strategy budget"))
		return
	}
	if budget == nil {
		budget = &types.StrategyBudget{StrategyName: req.StrategyName, Symbol: req.Symbol}
	}
	s.Monitor.EnableStrategy(budget)
	if err := s.Risk.SaveBudget(budget); err != nil {
		writeError(c, apperr.Internal(err, "save strategy budget"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "strategy re-enabled"})
}
