package member_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"accesspanel/internal/adapters/storage"
	store "accesspanel/internal/adapters/storage/member"
	domain "accesspanel/internal/domain/member"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db, storage.DialectSQLite); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return store.NewSQLiteStore(storage.NewTimedDB(db, storage.DialectSQLite, nil))
}

func date(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seed(t *testing.T, s *store.SQLiteStore, id, name string, created time.Time) domain.Member {
	t.Helper()
	m := domain.Member{
		ID:        id,
		FullName:  name,
		StartDate: date("2026-01-01"),
		EndDate:   date("2026-12-31"),
		CreatedAt: created,
	}
	if err := s.Save(context.Background(), m); err != nil {
		t.Fatalf("Save(%s): %v", id, err)
	}
	return m
}

// TestSQLiteStore_SaveAndGet verifies a round trip through the member table.
func TestSQLiteStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	m := seed(t, s, "m1", "Ana Torres", created)

	got, err := s.GetByID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FullName != m.FullName {
		t.Errorf("FullName = %q, want %q", got.FullName, m.FullName)
	}
	if !got.StartDate.Equal(m.StartDate) || !got.EndDate.Equal(m.EndDate) {
		t.Errorf("dates = %v..%v, want %v..%v", got.StartDate, got.EndDate, m.StartDate, m.EndDate)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.PortraitURL != "" {
		t.Errorf("PortraitURL = %q, want empty", got.PortraitURL)
	}
}

// TestSQLiteStore_SaveUpdates verifies Save upserts and keeps created_at.
func TestSQLiteStore_SaveUpdates(t *testing.T) {
	s := newTestStore(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := seed(t, s, "m1", "Ana Torres", created)

	m.FullName = "Ana Torres Vidal"
	m.EndDate = date("2027-06-30")
	m.PortraitURL = "/portraits/m1.png"
	m.CreatedAt = created.Add(48 * time.Hour)
	if err := s.Save(context.Background(), m); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	got, err := s.GetByID(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FullName != "Ana Torres Vidal" || got.PortraitURL != "/portraits/m1.png" {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.EndDate.Equal(date("2027-06-30")) {
		t.Errorf("EndDate = %v", got.EndDate)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: %v", got.CreatedAt)
	}
}

// TestSQLiteStore_GetByID_NotFound verifies the domain not-found error.
func TestSQLiteStore_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByID(missing) = %v, want ErrNotFound", err)
	}
}

// TestSQLiteStore_Delete verifies removal and not-found on a second delete.
func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "m1", "Ana Torres", time.Now().UTC())

	if err := s.Delete(context.Background(), "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetByID(context.Background(), "m1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetByID after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(context.Background(), "m1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

// TestSQLiteStore_List verifies newest-first order, search, and paging.
func TestSQLiteStore_List(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	seed(t, s, "m1", "Ana Torres", base)
	seed(t, s, "m2", "Bruno Díaz", base.Add(time.Hour))
	seed(t, s, "m3", "Carla Anaya", base.Add(2*time.Hour))
	ctx := context.Background()

	all, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 3 || all[0].ID != "m3" || all[2].ID != "m1" {
		t.Fatalf("ListAll order = %v, want m3, m2, m1", ids(all))
	}

	found, err := s.List(ctx, store.ListFilter{Search: "ANA"})
	if err != nil {
		t.Fatalf("List(search): %v", err)
	}
	if len(found) != 2 || found[0].ID != "m3" || found[1].ID != "m1" {
		t.Errorf("List(search=ANA) = %v, want m3, m1", ids(found))
	}

	page, err := s.List(ctx, store.ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List(page): %v", err)
	}
	if len(page) != 1 || page[0].ID != "m2" {
		t.Errorf("List(limit=1, offset=1) = %v, want m2", ids(page))
	}

	n, err := s.Count(ctx, "ana")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count(ana) = %d, want 2", n)
	}
}

// TestSQLiteStore_ListAll_Empty verifies an empty table yields no members and no error.
func TestSQLiteStore_ListAll_Empty(t *testing.T) {
	s := newTestStore(t)
	all, err := s.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("ListAll() = %v, want empty", ids(all))
	}
}

func ids(ms []domain.Member) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
