package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"accesspanel/internal/adapters/email"
	"accesspanel/internal/domain/alert"
)

// DefaultEmailKinds are the alert kinds worth an email to the front desk.
var DefaultEmailKinds = []alert.Kind{
	alert.KindFetchFailure,
	alert.KindMembershipExpiring,
	alert.KindMembershipExpired,
}

// DefaultCooldown suppresses repeats of the same kind for the same member.
const DefaultCooldown = 24 * time.Hour

// EmailNotifier mails selected alert kinds through an email.Sender.
type EmailNotifier struct {
	sender   email.Sender
	to       []string
	kinds    map[alert.Kind]bool
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewEmailNotifier creates a notifier mailing kinds to recipients.
// PRE: sender is non-nil; an empty kinds uses DefaultEmailKinds
func NewEmailNotifier(sender email.Sender, to []string, kinds ...alert.Kind) *EmailNotifier {
	if len(kinds) == 0 {
		kinds = DefaultEmailKinds
	}
	set := make(map[alert.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return &EmailNotifier{
		sender:   sender,
		to:       to,
		kinds:    set,
		cooldown: DefaultCooldown,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Notify sends a if its kind is selected and it is outside the cooldown.
func (n *EmailNotifier) Notify(ctx context.Context, a alert.Alert) {
	if len(n.to) == 0 || !n.kinds[a.Kind] {
		return
	}
	key := string(a.Kind) + "|" + a.MemberID
	now := n.now()
	n.mu.Lock()
	if last, ok := n.last[key]; ok && now.Sub(last) < n.cooldown {
		n.mu.Unlock()
		slog.Debug("alert_email_suppressed", "kind", string(a.Kind), "member_id", a.MemberID)
		return
	}
	n.last[key] = now
	n.mu.Unlock()

	req, err := email.FromMarkdown(n.to, "[Access panel] "+a.Title, renderBody(a, now))
	if err != nil {
		slog.Error("alert_email_render_failed", "kind", string(a.Kind), "error", err)
		return
	}
	if _, err := n.sender.Send(ctx, req); err != nil {
		slog.Error("alert_email_failed", "kind", string(a.Kind), "error", err)
		n.mu.Lock()
		delete(n.last, key)
		n.mu.Unlock()
	}
}

func renderBody(a alert.Alert, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", a.Title)
	if a.Message != "" {
		fmt.Fprintf(&b, "%s\n\n", a.Message)
	}
	fmt.Fprintf(&b, "- **Kind:** %s\n", a.Kind)
	if a.MemberID != "" {
		fmt.Fprintf(&b, "- **Member:** %s\n", a.MemberID)
	}
	fmt.Fprintf(&b, "- **Raised:** %s\n", now.Format(time.RFC1123))
	return b.String()
}
