package storage

import (
	"database/sql"
	"sort"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// getTableNames returns sorted table names from sqlite_master, excluding internal tables.
func getTableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TestInitDB_Fresh verifies the schema applies cleanly to an empty database.
func TestInitDB_Fresh(t *testing.T) {
	db := openTestDB(t)
	if err := InitDB(db, DialectSQLite); err != nil {
		t.Fatalf("InitDB failed on fresh db: %v", err)
	}

	want := []string{"account", "member"}
	got := getTableNames(t, db)
	if len(got) != len(want) {
		t.Fatalf("tables = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("table[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestInitDB_Idempotent verifies running InitDB twice keeps existing rows.
func TestInitDB_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := InitDB(db, DialectSQLite); err != nil {
		t.Fatalf("first InitDB failed: %v", err)
	}
	_, err := db.Exec(`INSERT INTO member (id, full_name, start_date, end_date, created_at)
		VALUES ('m1', 'Ana Torres', '2026-01-01', '2026-12-31', '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := InitDB(db, DialectSQLite); err != nil {
		t.Fatalf("second InitDB failed: %v", err)
	}

	var name string
	if err := db.QueryRow("SELECT full_name FROM member WHERE id = 'm1'").Scan(&name); err != nil {
		t.Fatalf("row lost after second InitDB: %v", err)
	}
	if name != "Ana Torres" {
		t.Errorf("full_name = %q, want Ana Torres", name)
	}
}

// TestRebind verifies placeholder rewriting per dialect.
func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{"sqlite untouched", DialectSQLite, "SELECT * FROM member WHERE id = ?", "SELECT * FROM member WHERE id = ?"},
		{"postgres single", DialectPostgres, "SELECT * FROM member WHERE id = ?", "SELECT * FROM member WHERE id = $1"},
		{"postgres several", DialectPostgres, "UPDATE member SET full_name = ?, end_date = ? WHERE id = ?",
			"UPDATE member SET full_name = $1, end_date = $2 WHERE id = $3"},
		{"postgres quoted literal", DialectPostgres, "SELECT '?' AS q, id FROM member WHERE id = ?",
			"SELECT '?' AS q, id FROM member WHERE id = $1"},
		{"postgres no placeholders", DialectPostgres, "SELECT COUNT(*) FROM member", "SELECT COUNT(*) FROM member"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rebind(tt.dialect, tt.query); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDialect_DriverName verifies each dialect maps to a registered driver.
func TestDialect_DriverName(t *testing.T) {
	if got := DialectSQLite.DriverName(); got != "sqlite" {
		t.Errorf("sqlite driver = %q", got)
	}
	if got := DialectPostgres.DriverName(); got != "postgres" {
		t.Errorf("postgres driver = %q", got)
	}
}
