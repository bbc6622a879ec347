package orchestrators

import (
	"context"
	"log/slog"

	"accesspanel/internal/domain/alert"
	"accesspanel/internal/domain/member"
)

// MemberStoreForDelete defines the store interface needed by DeleteMember.
type MemberStoreForDelete interface {
	GetByID(ctx context.Context, id string) (member.Member, error)
	Delete(ctx context.Context, id string) error
}

// PortraitRemover deletes a stored portrait by its URL.
type PortraitRemover interface {
	Delete(ctx context.Context, url string) error
}

// DeleteMemberDeps holds dependencies for DeleteMember.
type DeleteMemberDeps struct {
	MemberStore MemberStoreForDelete
	Portraits   PortraitRemover
	Notifier    Notifier
}

// ExecuteDeleteMember removes a member and its portrait.
// PRE: id is non-empty
// POST: Member record gone; portrait blob removed on a best-effort basis
func ExecuteDeleteMember(ctx context.Context, id string, deps DeleteMemberDeps) error {
	m, err := deps.MemberStore.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := deps.MemberStore.Delete(ctx, id); err != nil {
		return err
	}

	if m.HasPortrait() && deps.Portraits != nil {
		if err := deps.Portraits.Delete(ctx, m.PortraitURL); err != nil {
			slog.Warn("member_event", "event", "portrait_delete_failed", "member_id", id, "error", err)
		}
	}

	slog.Info("member_event", "event", "member_deleted", "member_id", id)
	notifyMember(ctx, deps.Notifier, alert.KindMemberDeleted, "Member deleted", m)
	return nil
}
