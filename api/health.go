package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleHealth is a liveness-equivalent top-level summary.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleHealthLive reports only that the process is up, grounded on
// original_source/backend/app/api/health.py's liveness-vs-readiness split.
func (s *Server) handleHealthLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// handleHealthReady additionally requires the database to be reachable
// and no account to be under emergency shutdown.
func (s *Server) handleHealthReady(c *gin.Context) {
	if err := s.DB.PingContext(reqCtx(c)); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "database unreachable"})
		return
	}
	if s.Risk != nil {
		if state, _ := s.Risk.GetAccountState(s.AccountID); state != nil && state.EmergencyShutdown {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "emergency shutdown active"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleHealthDetailed(c *gin.Context) {
	dbOK := s.DB.PingContext(reqCtx(c)) == nil
	var agents interface{}
	if s.Health != nil {
		agents = s.Health.GetAllAgentHealth()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"database":  dbOK,
		"agents":    agents,
		"timestamp": time.Now().UTC(),
	})
}
