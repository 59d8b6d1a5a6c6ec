package storage

import "database/sql"

// migrateV001 creates one table per study. Both tables share the generic
// event layout; only the column names differ. Timestamps are milliseconds
// since the epoch stored as REAL.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS week_in_the_life (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			event_code INTEGER,
			data1      TEXT,
			data2      TEXT,
			data3      TEXT,
			timestamp  REAL
		)`,

		`CREATE TABLE IF NOT EXISTS combined_beta_study_results (
			seq              INTEGER PRIMARY KEY AUTOINCREMENT,
			event            INTEGER,
			item             TEXT,
			sub_item         TEXT,
			interaction_type TEXT,
			timestamp        REAL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_week_in_the_life_ts ON week_in_the_life(timestamp, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_combined_beta_ts    ON combined_beta_study_results(timestamp, seq)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV002 adds the study metadata and audit tables.
func migrateV002(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS study_meta (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			study  TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			ts     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts     ON audit_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
