// Package bus implements the priority-ordered, expiring inter-agent
// Message Bus that the Coordination Pipeline uses to hand work between
// the supervisor, strategy, risk, and execution agents.
package bus

import (
	"sort"
	"sync"
	"time"

	"tradecore/types"
)

var allAgents = []string{"supervisor", "strategy", "risk", "execution"}

// Bus is an in-process, durable-by-persistence message queue. The
// in-memory slice keeps hot-path state in plain structures; a Store
// (see store package) persists every message so a restart can rebuild it.
type Bus struct {
	mu       sync.Mutex
	messages []*types.Message
	nextID   int64
	persist  func(*types.Message)
}

func NewBus(persist func(*types.Message)) *Bus {
	return &Bus{persist: persist}
}

// Send enqueues a message with an optional expiry computed from
// expiresIn (zero means no expiry).
func (b *Bus) Send(cycleID, from, to string, typ types.MessageType, priority types.Priority, payload map[string]interface{}, expiresIn time.Duration) *types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	msg := &types.Message{
		ID:        b.nextID,
		CycleID:   cycleID,
		FromAgent: from,
		ToAgent:   to,
		Type:      typ,
		Priority:  priority,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	}
	if expiresIn > 0 {
		exp := msg.SentAt.Add(expiresIn)
		msg.ExpiresAt = &exp
	}
	b.messages = append(b.messages, msg)
	if b.persist != nil {
		b.persist(msg)
	}
	return msg
}

// Receive returns up to limit unprocessed, unexpired messages addressed
// to agent, ordered by priority ascending then sent_at ascending.
func (b *Bus) Receive(agent string, limit int, now time.Time) []*types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []*types.Message
	for _, m := range b.messages {
		if m.ToAgent != agent || m.Processed {
			continue
		}
		if m.ExpiresAt != nil && m.ExpiresAt.Before(now) {
			continue
		}
		matched = append(matched, m)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].SentAt.Before(matched[j].SentAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// MarkProcessed flags a message as consumed.
func (b *Bus) MarkProcessed(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.messages {
		if m.ID == id {
			m.Processed = true
			return
		}
	}
}

// SendResponse sends a RESPONSE message linked to the original and
// marks the original processed.
func (b *Bus) SendResponse(original *types.Message, from string, payload map[string]interface{}) *types.Message {
	resp := b.Send(original.CycleID, from, original.FromAgent, types.MessageResponse, types.PriorityNormal, payload, 0)
	resp.ResponseToID = &original.ID
	b.MarkProcessed(original.ID)
	return resp
}

// BroadcastHalt sends a CRITICAL HALT message to every agent except the
// sender, with a 60s expiry.
func (b *Bus) BroadcastHalt(cycleID, from, reason string) {
	for _, agent := range allAgents {
		if agent == from {
			continue
		}
		b.Send(cycleID, from, agent, types.MessageHalt, types.PriorityCritical,
			map[string]interface{}{"reason": reason}, 60*time.Second)
	}
}

// GetByID returns a message by id, or nil.
func (b *Bus) GetByID(id int64) *types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// ForAgent returns every message (processed or not) addressed to agent,
// most recent first.
func (b *Bus) ForAgent(agent string) []*types.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*types.Message
	for i := len(b.messages) - 1; i >= 0; i-- {
		if b.messages[i].ToAgent == agent {
			out = append(out, b.messages[i])
		}
	}
	return out
}
