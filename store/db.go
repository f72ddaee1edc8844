// Package store implements sqlite persistence for every entity in the
// kernel, with a per-entity Store-struct layout: CREATE TABLE IF NOT
// EXISTS, ALTER TABLE ADD COLUMN for migrations (errors ignored — the
// column already existing is the common case), and a trigger to keep
// updated_at current.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"tradecore/logger"
)

// DB wraps the raw sqlite handle shared by every entity store.
type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers
	db := &DB{DB: sqlDB}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Infof("opened sqlite database at %s", path)
	return db, nil
}

func (db *DB) migrate() error {
	stmts := []string{
		signalsSchema,
		ordersSchema,
		positionsSchema,
		journalSchema,
		accountRiskSchema,
		strategyBudgetSchema,
		riskDecisionSchema,
		feedbackDecisionSchema,
		settingsAuditSchema,
		executionModeAuditSchema,
		messagesSchema,
		cyclesSchema,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	// Best-effort forward migrations: ignore "duplicate column" errors.
	alters := []string{
		`ALTER TABLE signals ADD COLUMN risk_reward_ratio TEXT`,
		`ALTER TABLE execution_orders ADD COLUMN stop_price TEXT`,
	}
	for _, a := range alters {
		_, _ = db.Exec(a)
	}
	return nil
}

func execTrigger(table string) string {
	return fmt.Sprintf(`
CREATE TRIGGER IF NOT EXISTS update_%s_updated_at
AFTER UPDATE ON %s
BEGIN
	UPDATE %s SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
END;`, table, table, table)
}
