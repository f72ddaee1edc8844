package store

import (
	"database/sql"

	"tradecore/types"
)

const settingsAuditSchema = `
CREATE TABLE IF NOT EXISTS settings_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL,
	old_value TEXT,
	new_value TEXT,
	changed_by TEXT,
	reason TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const executionModeAuditSchema = `
CREATE TABLE IF NOT EXISTS execution_mode_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	old_mode TEXT NOT NULL,
	new_mode TEXT NOT NULL,
	reason TEXT,
	ip_address TEXT,
	user_agent TEXT,
	confirmation_required INTEGER DEFAULT 0,
	password_verified INTEGER DEFAULT 0,
	had_open_positions INTEGER DEFAULT 0,
	positions_cancelled INTEGER DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const totpSecretsSchema = `
CREATE TABLE IF NOT EXISTS totp_secrets (
	user_id TEXT PRIMARY KEY,
	secret TEXT NOT NULL
);
`

// SettingsStore implements settingssvc.SettingsStore.
type SettingsStore struct {
	db *DB
}

func NewSettingsStore(db *DB) *SettingsStore {
	_, _ = db.Exec(totpSecretsSchema)
	return &SettingsStore{db: db}
}

func (s *SettingsStore) SaveSettingsAudit(a *types.SettingsAudit) error {
	_, err := s.db.Exec(
		`INSERT INTO settings_audit (key, old_value, new_value, changed_by, reason) VALUES (?,?,?,?,?)`,
		a.Key, a.OldValue, a.NewValue, a.ChangedBy, a.Reason)
	return err
}

func (s *SettingsStore) SaveExecutionModeAudit(a *types.ExecutionModeAudit) error {
	_, err := s.db.Exec(
		`INSERT INTO execution_mode_audit (old_mode, new_mode, reason, ip_address, user_agent,
			confirmation_required, password_verified, had_open_positions, positions_cancelled)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		a.OldMode, a.NewMode, a.Reason, a.IPAddress, a.UserAgent,
		boolToInt(a.ConfirmationRequired), boolToInt(a.PasswordVerified),
		boolToInt(a.HadOpenPositions), a.PositionsCancelled)
	return err
}

// GetTOTPSecret returns an empty string (not an error) when no secret
// has been enrolled for a user, matching settingssvc's "skip TOTP check
// if GetTOTPSecret can't find one" fallback.
func (s *SettingsStore) GetTOTPSecret(userID string) (string, error) {
	var secret string
	err := s.db.QueryRow(`SELECT secret FROM totp_secrets WHERE user_id = ?`, userID).Scan(&secret)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return secret, err
}

func (s *SettingsStore) SaveTOTPSecret(userID, secret string) error {
	_, err := s.db.Exec(
		`INSERT INTO totp_secrets (user_id, secret) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET secret = excluded.secret`, userID, secret)
	return err
}
