package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"accesspanel/internal/domain/alert"
)

// DefaultFeedSize is how many alerts the feed keeps.
const DefaultFeedSize = 50

// Feed keeps the most recent alerts for the toast area.
type Feed struct {
	mu    sync.Mutex
	items []alert.Alert
	pos   int
	count int
	now   func() time.Time
}

// NewFeed creates a feed holding up to size alerts.
// PRE: size > 0, otherwise DefaultFeedSize is used
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{items: make([]alert.Alert, size), now: time.Now}
}

// Notify stores a, filling in ID and CreatedAt when unset.
// POST: a is the newest entry; the oldest is dropped when full
func (f *Feed) Notify(_ context.Context, a alert.Alert) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = f.now()
	}

	logAttrs := []any{"event", string(a.Kind), "level", string(a.Level), "title", a.Title}
	if a.MemberID != "" {
		logAttrs = append(logAttrs, "member_id", a.MemberID)
	}
	if a.IsError() {
		slog.Warn("alert_event", logAttrs...)
	} else {
		slog.Info("alert_event", logAttrs...)
	}

	f.mu.Lock()
	f.items[f.pos] = a
	f.pos = (f.pos + 1) % len(f.items)
	if f.count < len(f.items) {
		f.count++
	}
	f.mu.Unlock()
}

// Recent returns up to limit alerts, newest first. limit <= 0 returns all.
func (f *Feed) Recent(limit int) []alert.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]alert.Alert, 0, n)
	for i := 1; i <= n; i++ {
		idx := (f.pos - i + len(f.items)) % len(f.items)
		out = append(out, f.items[idx])
	}
	return out
}
