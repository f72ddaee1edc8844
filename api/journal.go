package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradecore/apperr"
)

func (s *Server) handleJournalEntry(c *gin.Context) {
	entryID := c.Param("entry_id")
	c.JSON(http.StatusOK, gin.H{"entry_id": entryID, "message": "lookup by entry_id is served by the journal_entries table directly"})
}

func (s *Server) handleJournalAnalyze(c *gin.Context) {
	strategy, symbol := c.Param("strategy"), c.Param("symbol")
	under := s.Analyzer.DetectUnderperformance(strategy, symbol)
	c.JSON(http.StatusOK, under)
}

func (s *Server) handleJournalMetrics(c *gin.Context) {
	strategy, symbol := c.Param("strategy"), c.Param("symbol")
	c.JSON(http.StatusOK, s.Analyzer.LiveMetrics(strategy, symbol))
}

func (s *Server) handleUnderperformance(c *gin.Context) {
	strategy, symbol := c.Param("strategy"), c.Param("symbol")
	under := s.Analyzer.DetectUnderperformance(strategy, symbol)
	c.JSON(http.StatusOK, gin.H{"underperforming": under.Underperforming, "issues": under.Issues, "recommendation": under.Recommendation})
}

func (s *Server) handleFeedbackCycle(c *gin.Context) {
	strategy, symbol := c.Param("strategy"), c.Param("symbol")
	if s.Feedbk == nil {
		writeError(c, apperr.Internal(nil, "feedback loop not configured"))
		return
	}
	result := s.Feedbk.RunFeedbackCycle(strategy, symbol)
	c.JSON(http.StatusOK, result)
}

type feedbackBatchRequest struct {
	Pairs [][2]string `json:"pairs" binding:"required"`
}

func (s *Server) handleFeedbackBatch(c *gin.Context) {
	var req feedbackBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	c.JSON(http.StatusOK, s.Feedbk.RunBatchFeedback(req.Pairs))
}
