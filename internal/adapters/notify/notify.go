// Package notify delivers alerts raised by the scan flow and the member
// screens: to the in-memory toast feed and, for a few kinds, by email.
package notify

import (
	"context"

	"accesspanel/internal/domain/alert"
)

// Notifier receives alerts. Delivery is best effort; failures are logged by
// the implementation and never returned.
type Notifier interface {
	Notify(ctx context.Context, a alert.Alert)
}

// Multi fans an alert out to every notifier in order.
type Multi []Notifier

// Notify forwards a to each notifier.
func (m Multi) Notify(ctx context.Context, a alert.Alert) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, a)
		}
	}
}
