package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour spoken by the connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// TimeLayout is how timestamps are stored in TEXT columns. Fixed-width
// fractions keep lexical order equal to time order for UTC values.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Rebind rewrites ? placeholders into the dialect's positional form.
// Placeholders inside single-quoted literals are left alone.
func Rebind(d Dialect, query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// schema is shared by both dialects: TEXT ids and ISO dates keep the
// column types portable.
const schema = `
CREATE TABLE IF NOT EXISTS account (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	created_at TEXT NOT NULL,
	failed_logins INTEGER NOT NULL DEFAULT 0,
	locked_until TEXT
);

CREATE TABLE IF NOT EXISTS member (
	id TEXT PRIMARY KEY,
	full_name TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	portrait_url TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_member_created_at ON member(created_at);
`

// InitDB initializes the database schema.
// PRE: db is a valid database connection for dialect d
// POST: All tables are created; on SQLite, WAL mode and foreign keys enabled
func InitDB(db *sql.DB, d Dialect) error {
	if d == DialectSQLite {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			return fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	// One statement per Exec.
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
