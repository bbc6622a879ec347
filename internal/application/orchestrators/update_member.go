package orchestrators

import (
	"context"
	"log/slog"

	"accesspanel/internal/domain/alert"
	"accesspanel/internal/domain/member"
)

// UpdateMemberInput carries input for the orchestrator.
type UpdateMemberInput struct {
	ID        string `json:"id" validate:"required"`
	FullName  string `json:"fullName" validate:"notblank,max=100"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// UpdateMemberDeps holds dependencies for UpdateMember.
type UpdateMemberDeps struct {
	MemberStore MemberStore
	Notifier    Notifier
}

// ExecuteUpdateMember edits a member's name and membership window.
// PRE: Member exists; same field rules as registration
// POST: Name and dates replaced
// INVARIANT: ID, CreatedAt and PortraitURL are unchanged
func ExecuteUpdateMember(ctx context.Context, input UpdateMemberInput, deps UpdateMemberDeps) (member.Member, error) {
	if err := validateInput(input); err != nil {
		return member.Member{}, err
	}

	m, err := deps.MemberStore.GetByID(ctx, input.ID)
	if err != nil {
		return member.Member{}, err
	}
	if err := applyMemberFields(&m, input.FullName, input.StartDate, input.EndDate); err != nil {
		return member.Member{}, err
	}
	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return member.Member{}, err
	}

	slog.Info("member_event", "event", "member_updated", "member_id", m.ID)
	notifyMember(ctx, deps.Notifier, alert.KindMemberSaved, "Member updated", m)
	return m, nil
}
