// Package settingssvc implements the Settings & Mode Service: soft
// risk limits narrower than the hard caps, and the GUIDE/AUTONOMOUS and
// execution-mode transition gates.
package settingssvc

import (
	"context"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"

	"tradecore/apperr"
	"tradecore/broker"
	"tradecore/types"
)

// SoftLimits narrow the hard caps further; every field must be <= its
// HardCaps counterpart.
type SoftLimits struct {
	MaxRiskPerTradePercent decimal.Decimal
	MaxPositionSizeLots    decimal.Decimal
	MaxOpenPositions       int
	MaxDailyLossPercent    decimal.Decimal
}

func (s SoftLimits) ValidateAgainst(caps types.HardCaps) error {
	if s.MaxRiskPerTradePercent.GreaterThan(caps.MaxRiskPerTradePercent) {
		return apperr.Validation("soft max_risk_per_trade_percent %s exceeds hard cap %s", s.MaxRiskPerTradePercent, caps.MaxRiskPerTradePercent)
	}
	if s.MaxPositionSizeLots.GreaterThan(caps.MaxPositionSizeLots) {
		return apperr.Validation("soft max_position_size_lots %s exceeds hard cap %s", s.MaxPositionSizeLots, caps.MaxPositionSizeLots)
	}
	if s.MaxOpenPositions > caps.MaxOpenPositions {
		return apperr.Validation("soft max_open_positions %d exceeds hard cap %d", s.MaxOpenPositions, caps.MaxOpenPositions)
	}
	if s.MaxDailyLossPercent.GreaterThan(caps.MaxDailyLossPercent) {
		return apperr.Validation("soft max_daily_loss_percent %s exceeds hard cap %s", s.MaxDailyLossPercent, caps.MaxDailyLossPercent)
	}
	return nil
}

// SettingsStore is the persistence seam for settings + audit trail.
type SettingsStore interface {
	SaveSettingsAudit(*types.SettingsAudit) error
	SaveExecutionModeAudit(*types.ExecutionModeAudit) error
	GetTOTPSecret(userID string) (string, error)
}

// Service holds live Mode/ExecutionMode state plus the current soft
// limits, and enforces every transition invariant.
type Service struct {
	mode          types.Mode
	executionMode types.ExecutionMode
	softLimits    SoftLimits
	caps          types.HardCaps
	version       int
	store         SettingsStore
}

func NewService(caps types.HardCaps, store SettingsStore) *Service {
	return &Service{
		mode:          types.ModeGuide,
		executionMode: types.ExecutionSimulation,
		caps:          caps,
		store:         store,
	}
}

func (s *Service) Mode() types.Mode                   { return s.mode }
func (s *Service) ExecutionMode() types.ExecutionMode { return s.executionMode }
func (s *Service) Version() int                       { return s.version }

// SetSoftLimits replaces the soft limits after validating them against
// the hard caps. The update is rejected outright if any field would
// loosen a hard cap.
func (s *Service) SetSoftLimits(limits SoftLimits, changedBy, reason string) error {
	if err := limits.ValidateAgainst(s.caps); err != nil {
		return err
	}
	s.softLimits = limits
	s.version++
	return s.store.SaveSettingsAudit(&types.SettingsAudit{
		Key:       "soft_limits",
		ChangedBy: changedBy,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
}

// ModeChangeGates is the read-only state ChangeMode needs to decide whether
// a GUIDE -> AUTONOMOUS transition is safe. None of it is owned by Service;
// the caller gathers it from the Health Monitor, the active broker adapter,
// and the account's risk state.
type ModeChangeGates struct {
	HealthOK          bool
	HealthIssues      []string
	ExecutionMode     types.ExecutionMode
	BrokerConnected   bool
	EmergencyShutdown bool
	EmergencyReason   string
}

// ChangeMode transitions between GUIDE and AUTONOMOUS. Moving into
// AUTONOMOUS is the one direction that can put real capital at risk
// unattended, so it is gated: every agent must be healthy, the broker must
// either be the simulator or already connected, and the account must not
// be under an active emergency shutdown. GUIDE is always reachable — it's
// the safe direction.
func (s *Service) ChangeMode(newMode types.Mode, changedBy, reason string, gates ModeChangeGates) error {
	if newMode != types.ModeGuide && newMode != types.ModeAutonomous {
		return apperr.Validation("unknown mode %q", newMode)
	}
	if newMode == types.ModeAutonomous {
		if !gates.HealthOK {
			return apperr.ModeBlocked("cannot switch to AUTONOMOUS: unhealthy agents %v", gates.HealthIssues)
		}
		if gates.ExecutionMode != types.ExecutionSimulation && !gates.BrokerConnected {
			return apperr.ModeBlocked("cannot switch to AUTONOMOUS: broker %s is not connected", gates.ExecutionMode)
		}
		if gates.EmergencyShutdown {
			return apperr.ModeBlocked("cannot switch to AUTONOMOUS: account is under emergency shutdown: %s", gates.EmergencyReason)
		}
	}
	old := s.mode
	s.mode = newMode
	s.version++
	return s.store.SaveSettingsAudit(&types.SettingsAudit{
		Key:       "mode",
		OldValue:  string(old),
		NewValue:  string(newMode),
		ChangedBy: changedBy,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
}

// ModeChangeRequest carries the LIVE-transition confirmation fields.
type ModeChangeRequest struct {
	NewMode             types.ExecutionMode
	Reason              string
	IPAddress           string
	UserAgent           string
	UserID              string
	Password            string
	ExpectedPassword    string
	TOTPCode            string
	ConfirmationPhrase  string
}

const liveConfirmationPhrase = "I understand the risk of live trading"

// ChangeExecutionMode transitions SIMULATION/PAPER/LIVE. A transition to
// LIVE requires password verification and the exact confirmation phrase,
// plus a valid TOTP code when the user has a TOTP secret enrolled; it also
// records whether any positions were open on the active adapter at the
// moment of transition.
func (s *Service) ChangeExecutionMode(ctx context.Context, req ModeChangeRequest, activeAdapter broker.Adapter) error {
	old := s.executionMode

	audit := &types.ExecutionModeAudit{
		OldMode:   old,
		NewMode:   req.NewMode,
		Reason:    req.Reason,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		CreatedAt: time.Now().UTC(),
	}

	if req.NewMode == types.ExecutionLive {
		audit.ConfirmationRequired = true
		if req.Password == "" || req.Password != req.ExpectedPassword {
			return apperr.ModeBlocked("password verification required for LIVE mode")
		}
		audit.PasswordVerified = true
		if req.ConfirmationPhrase != liveConfirmationPhrase {
			return apperr.ModeBlocked("confirmation phrase does not match")
		}
		secret, err := s.store.GetTOTPSecret(req.UserID)
		if err == nil && secret != "" {
			if !totp.Validate(req.TOTPCode, secret) {
				return apperr.ModeBlocked("TOTP code invalid")
			}
		}
	}

	if activeAdapter != nil {
		positions, err := activeAdapter.GetPositions(ctx)
		if err == nil && len(positions) > 0 {
			audit.HadOpenPositions = true
			audit.PositionsCancelled = 0 // operator responsibility; nothing is cancelled here
		}
	}

	s.executionMode = req.NewMode
	s.version++
	return s.store.SaveExecutionModeAudit(audit)
}
