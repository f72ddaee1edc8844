package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tradecore/apperr"
	"tradecore/types"
)

type executeRequest struct {
	SignalID   int64  `json:"signal_id" binding:"required"`
	BrokerType string `json:"broker_type"`
}

func (s *Server) handleExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}

	account, err := s.Risk.GetAccountState(s.AccountID)
	if err != nil {
		writeError(c, apperr.Internal(err, "load account risk state"))
		return
	}
	if account == nil {
		account = &types.AccountRiskState{AccountID: s.AccountID}
	}

	adapter := s.SimAdapter
	if req.BrokerType == "live" && s.LiveAdapter != nil {
		adapter = s.LiveAdapter
	}

	signal, err := s.Signals.GetSignal(reqCtx(c), req.SignalID)
	if err != nil {
		writeError(c, apperr.Internal(err, "load signal"))
		return
	}
	if signal == nil {
		writeError(c, apperr.NotFound("signal %d not found", req.SignalID))
		return
	}
	budget, err := s.Risk.GetBudget(signal.StrategyName, signal.Symbol)
	if err != nil {
		writeError(c, apperr.Internal(err, "load strategy budget"))
		return
	}
	if budget == nil {
		budget = &types.StrategyBudget{StrategyName: signal.StrategyName, Symbol: signal.Symbol, IsEnabled: true}
	}

	result, err := s.Engine.ExecuteSignal(reqCtx(c), req.SignalID, s.SettingsSvc.Mode(), *account, *budget, adapter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        result.Success,
		"order":          result.Order,
		"blocked_reason": result.BlockedReason,
	})
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil {
		writeError(c, apperr.Validation("invalid order id"))
		return
	}
	order, err := s.orderByID(c, orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.Engine.CancelOrder(reqCtx(c), order, s.SimAdapter); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order cancelled", "order": order})
}

func (s *Server) handleGetOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, apperr.Validation("invalid order id"))
		return
	}
	order, err := s.orderByID(c, orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleOrderLogs(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil {
		writeError(c, apperr.Validation("invalid order id"))
		return
	}
	s.Signals.LogEvent(reqCtx(c), orderID, "queried", "logs retrieved via API")
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "message": "see execution_logs table for full history"})
}

func (s *Server) orderByID(c *gin.Context, id int64) (*types.ExecutionOrder, error) {
	order, err := s.Signals.GetOrder(reqCtx(c), id)
	if err != nil {
		return nil, apperr.Internal(err, "load order %d", id)
	}
	if order == nil {
		return nil, apperr.NotFound("order %d not found", id)
	}
	return order, nil
}
