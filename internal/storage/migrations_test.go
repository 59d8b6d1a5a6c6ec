package storage

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner_FreshDB(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db, "")

	err := runner.Run()
	require.NoError(t, err)

	expectedTables := []string{
		"week_in_the_life",
		"combined_beta_study_results",
		"study_meta",
		"audit_log",
		"schema_migrations",
	}
	for _, table := range expectedTables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrationRunner_IndexesCreated(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db, "").Run())

	expectedIndexes := []string{
		"idx_week_in_the_life_ts",
		"idx_combined_beta_ts",
		"idx_audit_log_ts",
		"idx_audit_log_action",
	}
	for _, idx := range expectedIndexes {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx,
		).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
		assert.Equal(t, idx, name)
	}
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db, "")

	require.NoError(t, runner.Run())
	require.NoError(t, runner.Run())

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "each migration should be recorded once after double-run")
}

func TestMigrationRunner_SchemaMigrationsTracking(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db, "").Run())

	rows, err := db.Query("SELECT version, name FROM schema_migrations ORDER BY version")
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var version int
		var name string
		require.NoError(t, rows.Scan(&version, &name))
		got = append(got, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"study_tables", "study_meta_and_audit"}, got)
}

func TestMigrationRunner_JournalMode(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db, "WAL").Run())

	var journalMode string
	err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	require.NoError(t, err)
	// In-memory databases report "memory" even after WAL is requested.
	assert.Contains(t, []string{"wal", "memory"}, journalMode)
}

func TestMigrationRunner_RejectsUnknownJournalMode(t *testing.T) {
	db := openTestDB(t)
	err := NewMigrationRunner(db, "wal; DROP TABLE x").Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported journal mode")
}

func TestMigrationRunner_ForeignKeys(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db, "").Run())

	var fk int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	require.NoError(t, err)
	assert.Equal(t, 1, fk, "foreign_keys should be enabled")
}

func TestMigrationRunner_InterfaceTableColumns(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db, "").Run())

	_, err := db.Exec(`
		INSERT INTO combined_beta_study_results (event, item, sub_item, interaction_type, timestamp)
		VALUES (1, 'urlbar', 'url', 'enter', 1000.0)
	`)
	require.NoError(t, err)

	var event int
	var item, subItem, interaction string
	var ts float64
	err = db.QueryRow("SELECT event, item, sub_item, interaction_type, timestamp FROM combined_beta_study_results").
		Scan(&event, &item, &subItem, &interaction, &ts)
	require.NoError(t, err)
	assert.Equal(t, 1, event)
	assert.Equal(t, "urlbar", item)
	assert.Equal(t, "url", subItem)
	assert.Equal(t, "enter", interaction)
	assert.Equal(t, 1000.0, ts)
}
