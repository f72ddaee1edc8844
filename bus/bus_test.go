package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecore/types"
)

func TestReceiveOrdersByPriorityThenTime(t *testing.T) {
	b := NewBus(nil)
	b.Send("cycle-1", "supervisor", "risk", types.MessageCommand, types.PriorityNormal, nil, 0)
	b.Send("cycle-1", "supervisor", "risk", types.MessageCommand, types.PriorityCritical, nil, 0)
	b.Send("cycle-1", "supervisor", "risk", types.MessageCommand, types.PriorityHigh, nil, 0)

	msgs := b.Receive("risk", 10, time.Now())
	require.Len(t, msgs, 3)
	assert.Equal(t, types.PriorityCritical, msgs[0].Priority)
	assert.Equal(t, types.PriorityHigh, msgs[1].Priority)
	assert.Equal(t, types.PriorityNormal, msgs[2].Priority)
}

func TestReceiveExcludesExpiredAndProcessed(t *testing.T) {
	b := NewBus(nil)
	m1 := b.Send("cycle-1", "supervisor", "strategy", types.MessageCommand, types.PriorityNormal, nil, time.Millisecond)
	m2 := b.Send("cycle-1", "supervisor", "strategy", types.MessageCommand, types.PriorityNormal, nil, 0)

	b.MarkProcessed(m2.ID)
	future := time.Now().Add(time.Second)

	msgs := b.Receive("strategy", 10, future)
	assert.Empty(t, msgs, "expired and processed messages are both excluded")
	assert.True(t, m1.ExpiresAt.Before(future))
}

func TestSendResponseLinksAndMarksOriginalProcessed(t *testing.T) {
	b := NewBus(nil)
	original := b.Send("cycle-1", "supervisor", "risk", types.MessageCommand, types.PriorityNormal, nil, 0)

	resp := b.SendResponse(original, "risk", map[string]interface{}{"approved": true})
	require.NotNil(t, resp.ResponseToID)
	assert.Equal(t, original.ID, *resp.ResponseToID)
	assert.Equal(t, "supervisor", resp.ToAgent)

	stored := b.GetByID(original.ID)
	assert.True(t, stored.Processed)
}

func TestBroadcastHaltReachesEveryAgentExceptSender(t *testing.T) {
	b := NewBus(nil)
	b.BroadcastHalt("cycle-1", "supervisor", "drawdown breach")

	for _, agent := range []string{"strategy", "risk", "execution"} {
		msgs := b.Receive(agent, 10, time.Now())
		require.Len(t, msgs, 1)
		assert.Equal(t, types.MessageHalt, msgs[0].Type)
		assert.Equal(t, types.PriorityCritical, msgs[0].Priority)
	}
	assert.Empty(t, b.Receive("supervisor", 10, time.Now()))
}

func TestSendPersistsEveryMessage(t *testing.T) {
	var persisted []*types.Message
	b := NewBus(func(m *types.Message) { persisted = append(persisted, m) })

	b.Send("cycle-1", "supervisor", "risk", types.MessageCommand, types.PriorityNormal, nil, 0)
	b.Send("cycle-1", "risk", "supervisor", types.MessageResponse, types.PriorityNormal, nil, 0)

	assert.Len(t, persisted, 2)
}
