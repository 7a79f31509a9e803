package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/dispatch/pkg/model"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so that text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) a SQLite journal at path.
// Use ":memory:" for an in-memory journal (useful in tests).
func Open(path string, logger *slog.Logger) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer, and every connection to ":memory:" would be a new database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sql.DB, logger *slog.Logger) *SQLiteJournal {
	return &SQLiteJournal{
		db:     db,
		logger: logger.With("component", "journal"),
	}
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Migrate creates all required tables and indexes.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	j.logger.Debug("sql", "op", "migrate")
	if err := migrate(ctx, j.db); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) Record(ctx context.Context, ev model.Event) error {
	j.logger.Debug("sql", "op", "insert", "table", "events", "kind", ev.Kind, "job_id", ev.JobID)

	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (run_id, tick, kind, job_id, seq, priority, remaining, pid, detail, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Tick, string(ev.Kind), ev.JobID, ev.Seq, ev.Priority,
		ev.Remaining, ev.PID, ev.Detail, at.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) Events(ctx context.Context, f Filter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.JobID != "" {
		where = append(where, "job_id = ?")
		args = append(args, f.JobID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}

	query := `SELECT run_id, tick, kind, job_id, seq, priority, remaining, pid, detail, at FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			ev   model.Event
			kind string
			at   string
		)
		if err := rows.Scan(&ev.RunID, &ev.Tick, &kind, &ev.JobID, &ev.Seq, &ev.Priority,
			&ev.Remaining, &ev.PID, &ev.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		ev.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse event time %q: %w", at, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, MIN(at), MAX(tick), COUNT(*), SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END)
		 FROM events GROUP BY run_id ORDER BY MIN(at) DESC`,
		string(model.EventFail))
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r       RunSummary
			started string
		)
		if err := rows.Scan(&r.RunID, &started, &r.LastTick, &r.Events, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse run start %q: %w", started, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
