package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradecore/apperr"
	"tradecore/types"
)

type runCycleRequest struct {
	Symbol      string   `json:"symbol" binding:"required"`
	Strategies  []string `json:"strategies"`
	Balance     string   `json:"balance"`
	PeakBalance string   `json:"peak_balance"`
}

func (s *Server) handleRunCycle(c *gin.Context) {
	var req runCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	balance := parseDecOr(req.Balance, decimal.Zero)
	peak := parseDecOr(req.PeakBalance, balance)

	cycle := s.Pipeline.ExecuteCycle(reqCtx(c), req.Symbol, req.Strategies, balance, peak, s.SettingsSvc.Mode())
	if s.Cycles != nil {
		_ = s.Cycles.Save(cycle)
	}

	phasesCompleted := []string{}
	for _, agent := range []string{"strategy", "risk", "execution"} {
		if status, ok := cycle.ActiveAgents[agent]; ok && status == types.AgentDone {
			phasesCompleted = append(phasesCompleted, agent)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          !cycle.HaltRequested && cycle.Phase != types.PhaseFailed,
		"cycle_id":         cycle.CycleID,
		"phase":            cycle.Phase,
		"phases_completed": phasesCompleted,
		"mode":             s.SettingsSvc.Mode(),
		"halted":           cycle.HaltRequested,
		"halt_reason":      cycle.HaltReason,
	})
}

type haltRequest struct {
	Agent  string `json:"agent" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) handleHaltCycle(c *gin.Context) {
	var req haltRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	s.Pipeline.HaltCycle(req.Agent, req.Reason)
	c.JSON(http.StatusOK, gin.H{"message": "halt requested"})
}

func (s *Server) handleGetCycle(c *gin.Context) {
	cycle := s.State.GetCycle(c.Param("id"))
	if cycle == nil {
		writeError(c, apperr.NotFound("cycle %s not found", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, cycle)
}

func (s *Server) handleRecentCycles(c *gin.Context) {
	limit := 20
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	c.JSON(http.StatusOK, s.State.RecentCycles(limit))
}

func (s *Server) handleMessages(c *gin.Context) {
	agent := c.Query("agent")
	if agent == "" {
		writeError(c, apperr.Validation("agent query parameter is required"))
		return
	}
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	c.JSON(http.StatusOK, s.Bus.Receive(agent, limit, time.Now().UTC()))
}

func (s *Server) handleAgentHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.Health.GetAllAgentHealth())
}

func (s *Server) handleAgentHealthAction(c *gin.Context) {
	agent := c.Param("agent")
	switch c.Param("action") {
	case "heartbeat":
		s.Health.Heartbeat(agent, 0, time.Now().UTC())
	case "initialize":
		s.Health.InitializeAgent(agent)
	case "reset":
		s.Health.ResetAgentHealth(agent)
	default:
		writeError(c, apperr.Validation("unknown health action %q", c.Param("action")))
		return
	}
	health, _ := s.Health.GetAgentHealth(agent)
	c.JSON(http.StatusOK, health)
}
