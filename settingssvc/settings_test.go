package settingssvc

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/broker"
	"tradecore/risk"
	"tradecore/types"
)

type fakeStore struct {
	settingsAudits []*types.SettingsAudit
	modeAudits     []*types.ExecutionModeAudit
	totpSecrets    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{totpSecrets: make(map[string]string)}
}

func (s *fakeStore) SaveSettingsAudit(a *types.SettingsAudit) error {
	s.settingsAudits = append(s.settingsAudits, a)
	return nil
}

func (s *fakeStore) SaveExecutionModeAudit(a *types.ExecutionModeAudit) error {
	s.modeAudits = append(s.modeAudits, a)
	return nil
}

func (s *fakeStore) GetTOTPSecret(userID string) (string, error) {
	return s.totpSecrets[userID], nil
}

func TestSetSoftLimitsRejectsLooseningHardCap(t *testing.T) {
	caps := risk.DefaultHardCaps()
	svc := NewService(caps, newFakeStore())

	err := svc.SetSoftLimits(SoftLimits{
		MaxRiskPerTradePercent: caps.MaxRiskPerTradePercent.Add(decimal.NewFromInt(1)),
		MaxPositionSizeLots:    caps.MaxPositionSizeLots,
		MaxOpenPositions:       caps.MaxOpenPositions,
		MaxDailyLossPercent:    caps.MaxDailyLossPercent,
	}, "alice", "testing")

	assert.Error(t, err)
}

func TestSetSoftLimitsAcceptsNarrowerLimits(t *testing.T) {
	caps := risk.DefaultHardCaps()
	store := newFakeStore()
	svc := NewService(caps, store)

	err := svc.SetSoftLimits(SoftLimits{
		MaxRiskPerTradePercent: decimal.NewFromFloat(1),
		MaxPositionSizeLots:    decimal.NewFromFloat(5),
		MaxOpenPositions:       2,
		MaxDailyLossPercent:    decimal.NewFromFloat(2),
	}, "alice", "tighten risk")

	require.NoError(t, err)
	require.Len(t, store.settingsAudits, 1)
	assert.Equal(t, "alice", store.settingsAudits[0].ChangedBy)
	assert.Equal(t, 1, svc.Version())
}

func healthyGates() ModeChangeGates {
	return ModeChangeGates{HealthOK: true, ExecutionMode: types.ExecutionSimulation}
}

func TestChangeModeRejectsUnknownMode(t *testing.T) {
	svc := NewService(risk.DefaultHardCaps(), newFakeStore())
	err := svc.ChangeMode(types.Mode("bogus"), "alice", "test", healthyGates())
	assert.Error(t, err)
	assert.Equal(t, types.ModeGuide, svc.Mode())
}

func TestChangeModeSwitchesBetweenGuideAndAutonomous(t *testing.T) {
	store := newFakeStore()
	svc := NewService(risk.DefaultHardCaps(), store)

	require.NoError(t, svc.ChangeMode(types.ModeAutonomous, "alice", "go live", healthyGates()))
	assert.Equal(t, types.ModeAutonomous, svc.Mode())
	require.Len(t, store.settingsAudits, 1)
	assert.Equal(t, string(types.ModeGuide), store.settingsAudits[0].OldValue)
	assert.Equal(t, string(types.ModeAutonomous), store.settingsAudits[0].NewValue)
}

func TestChangeModeToGuideNeedsNoGates(t *testing.T) {
	store := newFakeStore()
	svc := NewService(risk.DefaultHardCaps(), store)
	require.NoError(t, svc.ChangeMode(types.ModeAutonomous, "alice", "go live", healthyGates()))

	require.NoError(t, svc.ChangeMode(types.ModeGuide, "alice", "pull back", ModeChangeGates{}))
	assert.Equal(t, types.ModeGuide, svc.Mode())
}

func TestChangeModeRejectsAutonomousWhenUnhealthy(t *testing.T) {
	svc := NewService(risk.DefaultHardCaps(), newFakeStore())
	err := svc.ChangeMode(types.ModeAutonomous, "alice", "go live",
		ModeChangeGates{HealthOK: false, HealthIssues: []string{"risk"}, ExecutionMode: types.ExecutionSimulation})
	assert.Error(t, err)
	assert.Equal(t, types.ModeGuide, svc.Mode())
}

func TestChangeModeRejectsAutonomousWhenLiveBrokerDisconnected(t *testing.T) {
	svc := NewService(risk.DefaultHardCaps(), newFakeStore())
	err := svc.ChangeMode(types.ModeAutonomous, "alice", "go live",
		ModeChangeGates{HealthOK: true, ExecutionMode: types.ExecutionLive, BrokerConnected: false})
	assert.Error(t, err)
	assert.Equal(t, types.ModeGuide, svc.Mode())
}

func TestChangeModeRejectsAutonomousUnderEmergencyShutdown(t *testing.T) {
	svc := NewService(risk.DefaultHardCaps(), newFakeStore())
	err := svc.ChangeMode(types.ModeAutonomous, "alice", "go live",
		ModeChangeGates{HealthOK: true, ExecutionMode: types.ExecutionSimulation, EmergencyShutdown: true, EmergencyReason: "drawdown breach"})
	assert.Error(t, err)
	assert.Equal(t, types.ModeGuide, svc.Mode())
}

func TestChangeExecutionModeRequiresPasswordForLive(t *testing.T) {
	svc := NewService(risk.DefaultHardCaps(), newFakeStore())
	adapter := broker.NewSimulatedAdapter(types.SimulationAccount{})

	err := svc.ChangeExecutionMode(context.Background(), ModeChangeRequest{
		NewMode:          types.ExecutionLive,
		Password:         "wrong",
		ExpectedPassword: "correct",
	}, adapter)

	assert.Error(t, err)
	assert.Equal(t, types.ExecutionSimulation, svc.ExecutionMode())
}

func TestChangeExecutionModeRequiresConfirmationPhrase(t *testing.T) {
	svc := NewService(risk.DefaultHardCaps(), newFakeStore())
	adapter := broker.NewSimulatedAdapter(types.SimulationAccount{})

	err := svc.ChangeExecutionMode(context.Background(), ModeChangeRequest{
		NewMode:            types.ExecutionLive,
		Password:           "secret",
		ExpectedPassword:   "secret",
		ConfirmationPhrase: "yes i am sure",
	}, adapter)

	assert.Error(t, err)
}

func TestChangeExecutionModeSucceedsWithValidConfirmation(t *testing.T) {
	svc := NewService(risk.DefaultHardCaps(), newFakeStore())
	adapter := broker.NewSimulatedAdapter(types.SimulationAccount{})

	err := svc.ChangeExecutionMode(context.Background(), ModeChangeRequest{
		NewMode:            types.ExecutionLive,
		Password:           "secret",
		ExpectedPassword:   "secret",
		ConfirmationPhrase: liveConfirmationPhrase,
	}, adapter)

	require.NoError(t, err)
	assert.Equal(t, types.ExecutionLive, svc.ExecutionMode())
}

func TestChangeExecutionModeToSimulationNeedsNoConfirmation(t *testing.T) {
	store := newFakeStore()
	svc := NewService(risk.DefaultHardCaps(), store)

	err := svc.ChangeExecutionMode(context.Background(), ModeChangeRequest{NewMode: types.ExecutionSimulation}, nil)
	require.NoError(t, err)
	require.Len(t, store.modeAudits, 1)
	assert.False(t, store.modeAudits[0].ConfirmationRequired)
}
