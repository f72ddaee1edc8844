package store

import (
	"database/sql"
	"encoding/json"

	"tradecore/journal"
	"tradecore/types"
)

const messagesSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id TEXT NOT NULL,
	from_agent TEXT NOT NULL,
	to_agent TEXT NOT NULL,
	type TEXT NOT NULL,
	priority INTEGER NOT NULL,
	payload TEXT,
	sent_at DATETIME NOT NULL,
	expires_at DATETIME,
	processed INTEGER DEFAULT 0,
	response_to_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_messages_cycle ON messages(cycle_id);
`

const cyclesSchema = `
CREATE TABLE IF NOT EXISTS cycles (
	cycle_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	phase TEXT NOT NULL,
	halt_requested INTEGER DEFAULT 0,
	halt_reason TEXT,
	errors TEXT,
	started_at DATETIME NOT NULL,
	completed_at DATETIME
);
`

const feedbackDecisionSchema = `
CREATE TABLE IF NOT EXISTS feedback_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_type TEXT NOT NULL,
	strategy_name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	analysis TEXT,
	action_taken TEXT,
	executed INTEGER DEFAULT 0,
	execution_result TEXT,
	action_params TEXT,
	decision_time DATETIME NOT NULL,
	executed_at DATETIME
);
`

// MessageStore persists the message bus, primarily for audit and
// replay inspection — the bus itself keeps its own in-memory queue.
type MessageStore struct {
	db *DB
}

func NewMessageStore(db *DB) *MessageStore { return &MessageStore{db: db} }

// Save matches the func(*types.Message) signature bus.NewBus expects.
func (s *MessageStore) Save(m *types.Message) {
	payload, _ := json.Marshal(m.Payload)
	var expiresAt interface{}
	if m.ExpiresAt != nil {
		expiresAt = *m.ExpiresAt
	}
	var responseToID interface{}
	if m.ResponseToID != nil {
		responseToID = *m.ResponseToID
	}
	_, _ = s.db.Exec(
		`INSERT INTO messages (cycle_id, from_agent, to_agent, type, priority, payload, sent_at, expires_at, processed, response_to_id)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.CycleID, m.FromAgent, m.ToAgent, m.Type, m.Priority, string(payload), m.SentAt,
		expiresAt, boolToInt(m.Processed), responseToID)
}

// CycleStore persists point-in-time snapshots of coordination cycles for
// audit and API history — coordination.StateManager itself is in-memory.
type CycleStore struct {
	db *DB
}

func NewCycleStore(db *DB) *CycleStore { return &CycleStore{db: db} }

func (s *CycleStore) Save(c *types.CycleState) error {
	errs, _ := json.Marshal(c.Errors)
	_, err := s.db.Exec(
		`INSERT INTO cycles (cycle_id, symbol, phase, halt_requested, halt_reason, errors, started_at, completed_at)
		 VALUES (?,?,?,?,?,?,?,?)
		 ON CONFLICT(cycle_id) DO UPDATE SET
			phase=excluded.phase, halt_requested=excluded.halt_requested, halt_reason=excluded.halt_reason,
			errors=excluded.errors, completed_at=excluded.completed_at`,
		c.CycleID, c.Symbol, c.Phase, boolToInt(c.HaltRequested), nullableString(c.HaltReason),
		string(errs), c.StartedAt, nullableTime(c.CompletedAt))
	return err
}

func (s *CycleStore) Recent(limit int) ([]types.CycleState, error) {
	rows, err := s.db.Query(
		`SELECT cycle_id, symbol, phase, halt_requested, halt_reason, errors, started_at, completed_at
		 FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.CycleState
	for rows.Next() {
		var c types.CycleState
		var phase, errs string
		var haltReason sql.NullString
		var halted int
		var completedAt sql.NullTime
		if err := rows.Scan(&c.CycleID, &c.Symbol, &phase, &halted, &haltReason, &errs, &c.StartedAt, &completedAt); err != nil {
			return nil, err
		}
		c.Phase = types.Phase(phase)
		c.HaltRequested = halted != 0
		c.HaltReason = haltReason.String
		_ = json.Unmarshal([]byte(errs), &c.Errors)
		if completedAt.Valid {
			c.CompletedAt = completedAt.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FeedbackDecisionStore persists journal.FeedbackDecision rows.
type FeedbackDecisionStore struct {
	db *DB
}

func NewFeedbackDecisionStore(db *DB) *FeedbackDecisionStore { return &FeedbackDecisionStore{db: db} }

// Save matches the func(*journal.FeedbackDecision) error signature journal.NewFeedbackLoop expects.
func (s *FeedbackDecisionStore) Save(d *journal.FeedbackDecision) error {
	analysis, _ := json.Marshal(d.Analysis)
	params, _ := json.Marshal(d.ActionParams)
	res, err := s.db.Exec(
		`INSERT INTO feedback_decisions (decision_type, strategy_name, symbol, analysis, action_taken, executed,
			execution_result, action_params, decision_time, executed_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		d.DecisionType, d.StrategyName, d.Symbol, string(analysis), d.ActionTaken, boolToInt(d.Executed),
		d.ExecutionResult, string(params), d.DecisionTime, nullableTime(d.ExecutedAt))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}
