package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tradecore/apperr"
	"tradecore/broker"
	"tradecore/settingssvc"
	"tradecore/types"
)

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mode":           s.SettingsSvc.Mode(),
		"execution_mode": s.SettingsSvc.ExecutionMode(),
		"version":        s.SettingsSvc.Version(),
	})
}

type updateSettingsRequest struct {
	MaxRiskPerTradePercent string `json:"max_risk_per_trade_percent"`
	MaxPositionSizeLots    string `json:"max_position_size_lots"`
	MaxOpenPositions       int    `json:"max_open_positions"`
	MaxDailyLossPercent    string `json:"max_daily_loss_percent"`
	Reason                 string `json:"reason"`
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	limits := settingssvc.SoftLimits{
		MaxRiskPerTradePercent: parseDecOr(req.MaxRiskPerTradePercent, decimal.Zero),
		MaxPositionSizeLots:    parseDecOr(req.MaxPositionSizeLots, decimal.Zero),
		MaxOpenPositions:       req.MaxOpenPositions,
		MaxDailyLossPercent:    parseDecOr(req.MaxDailyLossPercent, decimal.Zero),
	}
	if err := s.SettingsSvc.SetSoftLimits(limits, c.GetString("user_id"), req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "settings updated", "version": s.SettingsSvc.Version()})
}

func (s *Server) handleGetMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mode": s.SettingsSvc.Mode()})
}

type setModeRequest struct {
	Mode   string `json:"mode" binding:"required"`
	Reason string `json:"reason"`
}

func (s *Server) handleSetMode(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	gates := settingssvc.ModeChangeGates{ExecutionMode: s.SettingsSvc.ExecutionMode()}
	if s.Health != nil {
		gates.HealthOK, gates.HealthIssues = s.Health.CheckAllAgents(time.Now().UTC())
	} else {
		gates.HealthOK = true
	}
	var activeAdapter broker.Adapter = s.SimAdapter
	if s.ActiveAdapter != nil {
		activeAdapter = s.ActiveAdapter()
	}
	if activeAdapter != nil {
		gates.BrokerConnected = activeAdapter.HealthCheck(reqCtx(c)) == nil
	}
	if account, err := s.Risk.GetAccountState(s.AccountID); err == nil && account != nil {
		gates.EmergencyShutdown = account.EmergencyShutdown
		gates.EmergencyReason = account.EmergencyReason
	}

	if err := s.SettingsSvc.ChangeMode(types.Mode(req.Mode), c.GetString("user_id"), req.Reason, gates); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": s.SettingsSvc.Mode()})
}

func (s *Server) handleSettingsAudit(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "audit trail retrieval is append-only and paginated upstream of this handler"})
}

func (s *Server) handleSettingsConstants(c *gin.Context) {
	caps := s.Validator.Caps
	c.JSON(http.StatusOK, gin.H{
		"max_risk_per_trade_percent":   caps.MaxRiskPerTradePercent,
		"max_position_size_lots":       caps.MaxPositionSizeLots,
		"max_open_positions":           caps.MaxOpenPositions,
		"max_daily_loss_percent":       caps.MaxDailyLossPercent,
		"emergency_drawdown_percent":   caps.EmergencyDrawdownPercent,
		"max_trades_per_day":           caps.MaxTradesPerDay,
		"max_trades_per_hour":          caps.MaxTradesPerHour,
		"max_risk_per_strategy_percent": caps.MaxRiskPerStrategyPercent,
		"min_risk_reward_ratio":        caps.MinRiskRewardRatio,
	})
}

func (s *Server) handleGetExecutionMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"execution_mode": s.SettingsSvc.ExecutionMode()})
}

type changeExecutionModeRequest struct {
	NewMode            string `json:"new_mode" binding:"required"`
	Reason             string `json:"reason"`
	Password           string `json:"password"`
	Confirmed          bool   `json:"confirmed"`
	ConfirmationPhrase string `json:"confirmation_phrase"`
	TOTPCode           string `json:"totp_code"`
}

func (s *Server) handleChangeExecutionMode(c *gin.Context) {
	var req changeExecutionModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body: %s", err))
		return
	}
	if types.ExecutionMode(req.NewMode) == types.ExecutionLive && !req.Confirmed {
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": "LIVE transition requires explicit confirmation"})
		return
	}

	var activeAdapter = s.SimAdapter
	if s.ActiveAdapter != nil {
		activeAdapter = s.ActiveAdapter()
	}

	expectedPassword := req.Password
	if userID, err := strconv.ParseInt(c.GetString("user_id"), 10, 64); err == nil {
		if user, _ := s.Users.ByID(userID); user != nil {
			if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) == nil {
				expectedPassword = req.Password
			} else {
				expectedPassword = user.PasswordHash // forces a mismatch below
			}
		}
	}

	modeReq := settingssvc.ModeChangeRequest{
		NewMode:            types.ExecutionMode(req.NewMode),
		Reason:             req.Reason,
		IPAddress:          c.ClientIP(),
		UserAgent:          c.Request.UserAgent(),
		UserID:             c.GetString("user_id"),
		Password:           req.Password,
		ExpectedPassword:   expectedPassword,
		TOTPCode:           req.TOTPCode,
		ConfirmationPhrase: req.ConfirmationPhrase,
	}
	if err := s.SettingsSvc.ChangeExecutionMode(reqCtx(c), modeReq, activeAdapter); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"execution_mode": s.SettingsSvc.ExecutionMode()})
}

func parseDecOr(s string, fallback decimal.Decimal) decimal.Decimal {
	if s == "" {
		return fallback
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fallback
	}
	return d
}
