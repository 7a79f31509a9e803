package journal

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for the journal tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id    TEXT NOT NULL,
		tick      INTEGER NOT NULL,
		kind      TEXT NOT NULL,
		job_id    TEXT NOT NULL,
		seq       INTEGER NOT NULL,
		priority  INTEGER NOT NULL,
		remaining INTEGER NOT NULL,
		pid       INTEGER NOT NULL DEFAULT 0,
		at        TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_job_id ON events(job_id)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string
}{
	{
		table:    "events",
		column:   "detail",
		alterSQL: "ALTER TABLE events ADD COLUMN detail TEXT NOT NULL DEFAULT ''",
	},
	{
		table:    "events",
		column:   "kind",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if alter.alterSQL != "" {
			if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
				return err
			}
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}
	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// Release the connection before altering; the pool may hold only one.
	rows.Close()
	if found {
		return nil
	}

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
