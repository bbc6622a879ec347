package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"accesspanel/internal/adapters/http/perf"
)

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *TimedDB satisfy this interface. Stores write queries
// with ? placeholders; only *TimedDB rebinds them for Postgres.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Compile-time check that *sql.DB satisfies SQLDB.
var _ SQLDB = (*sql.DB)(nil)

// DefaultSlowQuery is the threshold above which a query logs at WARN.
const DefaultSlowQuery = 50 * time.Millisecond

// SlowQueryThreshold reads ACCESSPANEL_SLOW_QUERY_MS, falling back to
// DefaultSlowQuery when unset or not a positive integer.
func SlowQueryThreshold() time.Duration {
	if v := os.Getenv("ACCESSPANEL_SLOW_QUERY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return DefaultSlowQuery
}

var tracer = otel.Tracer("accesspanel/storage")

// TimedDB wraps a *sql.DB to rebind placeholders, log slow queries, trace
// each call, and optionally record to a collector.
type TimedDB struct {
	db        *sql.DB
	dialect   Dialect
	collector *perf.Collector
	threshold time.Duration
}

// Compile-time check that *TimedDB satisfies SQLDB.
var _ SQLDB = (*TimedDB)(nil)

// NewTimedDB wraps a *sql.DB with timing instrumentation.
// PRE: db is a valid database connection speaking dialect
// POST: Returns a TimedDB that logs slow queries and records to collector
func NewTimedDB(db *sql.DB, dialect Dialect, collector *perf.Collector) *TimedDB {
	if dialect == "" {
		dialect = DialectSQLite
	}
	return &TimedDB{
		db:        db,
		dialect:   dialect,
		collector: collector,
		threshold: SlowQueryThreshold(),
	}
}

// Dialect reports which SQL flavour the connection speaks.
func (t *TimedDB) Dialect() Dialect {
	return t.dialect
}

func (t *TimedDB) start(ctx context.Context, op, query string) (context.Context, trace.Span, string) {
	query = Rebind(t.dialect, query)
	ctx, span := tracer.Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", string(t.dialect)),
			attribute.String("db.statement", query),
		),
	)
	return ctx, span, query
}

// finish logs, records, and ends the span for one call.
func (t *TimedDB) finish(span trace.Span, op string, start time.Time, err error) {
	elapsed := time.Since(start)
	durationMs := float64(elapsed.Microseconds()) / 1000.0

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if elapsed >= t.threshold {
		slog.Warn("slow_query",
			"op", op,
			"dialect", string(t.dialect),
			"duration_ms", durationMs,
		)
	} else {
		slog.Debug("query",
			"op", op,
			"duration_ms", durationMs,
		)
	}

	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindQuery,
			Path:       op,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}

// ExecContext wraps sql.DB.ExecContext with timing.
// PRE: ctx is valid, query is non-empty
// POST: query executed, timing recorded to collector
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	ctx, span, query := t.start(ctx, "ExecContext", query)
	result, err := t.db.ExecContext(ctx, query, args...)
	t.finish(span, "ExecContext", start, err)
	return result, err
}

// QueryContext wraps sql.DB.QueryContext with timing.
// PRE: ctx is valid, query is non-empty
// POST: query executed, timing recorded to collector
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	ctx, span, query := t.start(ctx, "QueryContext", query)
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.finish(span, "QueryContext", start, err)
	return rows, err
}

// QueryRowContext wraps sql.DB.QueryRowContext with timing.
// PRE: ctx is valid, query is non-empty
// POST: query executed, timing recorded to collector
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	ctx, span, query := t.start(ctx, "QueryRowContext", query)
	row := t.db.QueryRowContext(ctx, query, args...)
	t.finish(span, "QueryRowContext", start, row.Err())
	return row
}

// PingContext verifies the database connection.
// POST: returns nil if connection is alive
func (t *TimedDB) PingContext(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

