package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"accesspanel/internal/adapters/storage"
	domain "accesspanel/internal/domain/member"
)

const selectColumns = "SELECT id, full_name, start_date, end_date, portrait_url, created_at FROM member"

// SQLiteStore implements Store over SQL. It speaks Postgres too when handed a
// *storage.TimedDB opened with the Postgres dialect.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new member Store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Member by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Member, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)

	entity, err := scanMember(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return entity, err
}

// Save persists a Member to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update); CreatedAt is kept on update
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Member) error {
	fields := []string{"id", "full_name", "start_date", "end_date", "portrait_url", "created_at"}
	placeholders := []string{"?", "?", "?", "?", "?", "?"}
	updates := []string{
		"full_name=excluded.full_name",
		"start_date=excluded.start_date",
		"end_date=excluded.end_date",
		"portrait_url=excluded.portrait_url",
	}

	query := fmt.Sprintf(
		"INSERT INTO member (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	var portrait any
	if entity.PortraitURL != "" {
		portrait = entity.PortraitURL
	}

	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		strings.TrimSpace(entity.FullName),
		entity.StartDate.Format(domain.DateLayout),
		entity.EndDate.Format(domain.DateLayout),
		portrait,
		entity.CreatedAt.UTC().Format(storage.TimeLayout),
	)
	return err
}

// Delete removes a Member from the database.
// PRE: id is non-empty
// POST: Entity removed; domain.ErrNotFound if no row matched
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM member WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return nil
}

// List retrieves Members newest first, optionally filtered by name.
// PRE: filter has valid parameters
// POST: Returns matching entities ordered by created_at descending
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Member, error) {
	var queryBuilder strings.Builder
	var args []any

	queryBuilder.WriteString(selectColumns)
	if filter.Search != "" {
		queryBuilder.WriteString(" WHERE LOWER(full_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(filter.Search))+"%")
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	return s.query(ctx, queryBuilder.String(), args...)
}

// ListAll retrieves every Member, newest first. The scan flow picks from this set.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]domain.Member, error) {
	return s.List(ctx, ListFilter{})
}

// Count returns the number of members matching search (all when empty).
func (s *SQLiteStore) Count(ctx context.Context, search string) (int, error) {
	query := "SELECT COUNT(*) FROM member"
	var args []any
	if search != "" {
		query += " WHERE LOWER(full_name) LIKE ?"
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(search))+"%")
	}
	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Member
	for rows.Next() {
		entity, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// scanMember extracts a Member from a row scanner function.
func scanMember(scan func(dest ...any) error) (domain.Member, error) {
	var entity domain.Member
	var startDate, endDate, createdAt string
	var portrait sql.NullString
	if err := scan(&entity.ID, &entity.FullName, &startDate, &endDate, &portrait, &createdAt); err != nil {
		return domain.Member{}, err
	}

	var err error
	if entity.StartDate, err = domain.ParseDate(startDate); err != nil {
		return domain.Member{}, fmt.Errorf("member %s start_date: %w", entity.ID, err)
	}
	if entity.EndDate, err = domain.ParseDate(endDate); err != nil {
		return domain.Member{}, fmt.Errorf("member %s end_date: %w", entity.ID, err)
	}
	if entity.CreatedAt, err = time.Parse(storage.TimeLayout, createdAt); err != nil {
		return domain.Member{}, fmt.Errorf("member %s created_at: %w", entity.ID, err)
	}
	if portrait.Valid {
		entity.PortraitURL = portrait.String
	}
	return entity, nil
}
