package storage

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store defines the data operations on one study's event log.
type Store interface {
	Append(ctx context.Context, event *Event) error
	Scan(ctx context.Context, since time.Time) iter.Seq2[Event, error]
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	CountBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeAll(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
	RunID(ctx context.Context) (string, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database. Appends are
// serialized so concurrent producers never interleave partial rows.
type SQLiteStore struct {
	db     *sql.DB
	schema Schema
	now    func() time.Time

	mu          sync.Mutex
	insertEvent *sql.Stmt
	runID       string
}

// NewSQLiteStore creates a SQLiteStore over an already-opened and migrated
// database. The study run identifier is minted on first use of a database.
func NewSQLiteStore(db *sql.DB, schema Schema) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, schema: schema, now: time.Now}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	if err := s.ensureRunID(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("init run id: %w", err)
	}

	return s, nil
}

// Open creates the database directory if needed, opens the SQLite file at
// path, runs migrations and returns a ready store. The caller owns the
// returned *sql.DB.
func Open(path string, schema Schema, journalMode string) (*SQLiteStore, *sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := NewMigrationRunner(db, journalMode)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewSQLiteStore(db, schema)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create store: %w", err)
	}

	return store, db, nil
}

// Schema returns the study schema this store writes to.
func (s *SQLiteStore) Schema() Schema {
	return s.schema
}

func (s *SQLiteStore) prepareStatements() error {
	var err error
	s.insertEvent, err = s.db.Prepare(fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s, %s, timestamp) VALUES (?, ?, ?, ?, ?)`,
		s.schema.Table, s.schema.CodeColumn,
		s.schema.DataColumns[0], s.schema.DataColumns[1], s.schema.DataColumns[2],
	))
	return err
}

func (s *SQLiteStore) ensureRunID(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO study_meta (key, value) VALUES ('run_id', ?)`,
		uuid.NewString(),
	); err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx,
		`SELECT value FROM study_meta WHERE key = 'run_id'`,
	).Scan(&s.runID)
}

// toMillis converts a time into the REAL column representation.
func toMillis(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// fromMillis converts a REAL column back into a time. Non-finite values
// are treated as absent.
func fromMillis(v sql.NullFloat64) time.Time {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return time.Time{}
	}
	return time.UnixMilli(int64(v.Float64))
}

// Append inserts an event. A zero Timestamp is stamped with the current
// time; the stored timestamp is truncated to milliseconds and written back
// to the event along with the assigned Seq.
func (s *SQLiteStore) Append(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	event.Timestamp = time.UnixMilli(event.Timestamp.UnixMilli())

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.insertEvent.ExecContext(ctx,
		event.Code, event.Data1, event.Data2, event.Data3, toMillis(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("%w: insert event: %w", ErrStoreWrite, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: read sequence: %w", ErrStoreWrite, err)
	}
	event.Seq = seq

	return nil
}

// Scan returns a lazy sequence over events with timestamp >= since, ordered
// by (timestamp, seq). A zero since yields every row, including rows whose
// timestamp is missing; those come first with a zero Timestamp. Each
// iteration issues one SELECT, so it observes a single snapshot and the
// sequence may be ranged over more than once.
func (s *SQLiteStore) Scan(ctx context.Context, since time.Time) iter.Seq2[Event, error] {
	query := fmt.Sprintf(
		`SELECT seq, %s, %s, %s, %s, timestamp FROM %s`,
		s.schema.CodeColumn,
		s.schema.DataColumns[0], s.schema.DataColumns[1], s.schema.DataColumns[2],
		s.schema.Table,
	)
	var args []any
	if !since.IsZero() {
		query += " WHERE timestamp >= ?"
		args = append(args, toMillis(since))
	}
	query += " ORDER BY timestamp, seq"

	return func(yield func(Event, error) bool) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(Event{}, fmt.Errorf("%w: query events: %w", ErrStoreRead, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e                   Event
				code                sql.NullInt64
				data1, data2, data3 sql.NullString
				ts                  sql.NullFloat64
			)
			if err := rows.Scan(&e.Seq, &code, &data1, &data2, &data3, &ts); err != nil {
				yield(Event{}, fmt.Errorf("%w: scan event: %w", ErrStoreRead, err))
				return
			}
			e.Code = int32(code.Int64)
			if !code.Valid {
				e.Code = -1
			}
			e.Data1, e.Data2, e.Data3 = data1.String, data2.String, data3.String
			e.Timestamp = fromMillis(ts)

			if !yield(e, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(Event{}, fmt.Errorf("%w: iterate events: %w", ErrStoreRead, err))
		}
	}
}

// Prune deletes events strictly older than cutoff and records the deletion
// in the audit log. A prune that deletes nothing writes nothing. Rows
// without a timestamp are kept.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE timestamp < ?", s.schema.Table),
		toMillis(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: prune events: %w", ErrStoreWrite, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: prune events: %w", ErrStoreWrite, err)
	}

	if n == 0 {
		return 0, nil
	}
	if err := s.audit(ctx, "prune", fmt.Sprintf("cutoff=%s deleted=%d", cutoff.UTC().Format(time.RFC3339), n)); err != nil {
		return n, err
	}

	return n, nil
}

// CountBefore counts events strictly older than cutoff.
func (s *SQLiteStore) CountBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE timestamp < ?", s.schema.Table),
		toMillis(cutoff),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count events: %w", ErrStoreRead, err)
	}
	return n, nil
}

// PurgeAll deletes every event of the study. The run identifier survives.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.schema.Table))
	if err != nil {
		return fmt.Errorf("%w: purge events: %w", ErrStoreWrite, err)
	}
	n, _ := res.RowsAffected()

	return s.audit(ctx, "purge", fmt.Sprintf("deleted=%d", n))
}

func (s *SQLiteStore) audit(ctx context.Context, action, detail string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_log (action, study, detail) VALUES (?, ?, ?)",
		action, s.schema.Name, detail,
	)
	if err != nil {
		return fmt.Errorf("%w: audit %s: %w", ErrStoreWrite, action, err)
	}
	return nil
}

// RecentAudit returns the newest audit entries for this study, newest first.
func (s *SQLiteStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT action, study, detail, ts FROM audit_log WHERE study = ? ORDER BY id DESC LIMIT ?",
		s.schema.Name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query audit log: %w", ErrStoreRead, err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var tsStr string
		if err := rows.Scan(&e.Action, &e.Study, &e.Detail, &tsStr); err != nil {
			return nil, fmt.Errorf("%w: scan audit entry: %w", ErrStoreRead, err)
		}
		e.At, _ = parseTimestamp(tsStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// parseTimestamp tries the timestamp formats SQLite produces.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// Stats returns aggregate statistics about the study table.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", s.schema.Table),
	).Scan(&stats.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("%w: count events: %w", ErrStoreRead, err)
	}

	if stats.TotalEvents > 0 {
		var oldest, newest sql.NullFloat64
		err = s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT MIN(timestamp), MAX(timestamp) FROM %s", s.schema.Table),
		).Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("%w: event time range: %w", ErrStoreRead, err)
		}
		stats.OldestEvent = fromMillis(oldest)
		stats.NewestEvent = fromMillis(newest)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSizeBytes = pageCount * pageSize
		}
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %[1]s, COUNT(*) AS cnt FROM %[2]s WHERE %[1]s IS NOT NULL GROUP BY %[1]s ORDER BY cnt DESC, %[1]s ASC",
		s.schema.CodeColumn, s.schema.Table,
	))
	if err != nil {
		return nil, fmt.Errorf("%w: code counts: %w", ErrStoreRead, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc CodeCount
		if err := rows.Scan(&cc.Code, &cc.Count); err != nil {
			return nil, fmt.Errorf("%w: scan code count: %w", ErrStoreRead, err)
		}
		stats.CodeCounts = append(stats.CodeCounts, cc)
	}

	return stats, rows.Err()
}

// RunID returns the identifier minted when the database was first opened.
func (s *SQLiteStore) RunID(ctx context.Context) (string, error) {
	if s.runID != "" {
		return s.runID, nil
	}
	if err := s.ensureRunID(ctx); err != nil {
		return "", fmt.Errorf("%w: read run id: %w", ErrStoreRead, err)
	}
	return s.runID, nil
}

// Close releases prepared statements. The underlying *sql.DB is not
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	if s.insertEvent != nil {
		s.insertEvent.Close()
	}
	return nil
}
