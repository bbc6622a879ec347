package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"accesspanel/internal/adapters/storage"
	domain "accesspanel/internal/domain/account"
)

const selectColumns = "SELECT id, email, password_hash, role, created_at, failed_logins, locked_until FROM account"

// SQLiteStore implements Store over SQL.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new account Store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return s.getOne(ctx, selectColumns+" WHERE id = ?", id)
}

// GetByEmail retrieves an Account by email, case-insensitively.
// PRE: email is non-empty
// POST: Returns the entity or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.getOne(ctx, selectColumns+" WHERE LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *SQLiteStore) getOne(ctx context.Context, query string, arg string) (domain.Account, error) {
	entity, err := scanAccount(s.db.QueryRowContext(ctx, query, arg).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrNotFound, arg)
	}
	return entity, err
}

// Save persists an Account to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Account) error {
	fields := []string{"id", "email", "password_hash", "role", "created_at", "failed_logins", "locked_until"}
	placeholders := []string{"?", "?", "?", "?", "?", "?", "?"}
	updates := []string{
		"email=excluded.email",
		"password_hash=excluded.password_hash",
		"role=excluded.role",
		"failed_logins=excluded.failed_logins",
		"locked_until=excluded.locked_until",
	}

	query := fmt.Sprintf(
		"INSERT INTO account (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	var lockedUntil any
	if !entity.LockedUntil.IsZero() {
		lockedUntil = entity.LockedUntil.UTC().Format(storage.TimeLayout)
	}

	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		strings.ToLower(strings.TrimSpace(entity.Email)),
		entity.PasswordHash,
		entity.Role,
		entity.CreatedAt.UTC().Format(storage.TimeLayout),
		entity.FailedLogins,
		lockedUntil,
	)
	return err
}

// Delete removes an Account from the database.
// PRE: id is non-empty
// POST: Entity with given id is removed
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM account WHERE id = ?", id)
	return err
}

// List retrieves Accounts based on the filter.
// PRE: filter has valid parameters
// POST: Returns matching entities, newest first
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	var queryBuilder strings.Builder
	var args []any

	queryBuilder.WriteString(selectColumns)
	if filter.Role != "" {
		queryBuilder.WriteString(" WHERE role = ?")
		args = append(args, filter.Role)
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Account
	for rows.Next() {
		entity, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the total number of accounts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&count)
	return count, err
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var createdAt string
	var lockedUntil sql.NullString
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.PasswordHash,
		&entity.Role,
		&createdAt,
		&entity.FailedLogins,
		&lockedUntil,
	)
	if err != nil {
		return domain.Account{}, err
	}
	entity.CreatedAt, _ = time.Parse(storage.TimeLayout, createdAt)
	if lockedUntil.Valid && lockedUntil.String != "" {
		entity.LockedUntil, _ = time.Parse(storage.TimeLayout, lockedUntil.String)
	}
	return entity, nil
}
