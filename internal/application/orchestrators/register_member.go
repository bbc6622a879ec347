package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"accesspanel/internal/domain/alert"
	"accesspanel/internal/domain/member"

	"github.com/google/uuid"
)

// MemberStore defines the interface for member persistence.
type MemberStore interface {
	Save(ctx context.Context, m member.Member) error
	GetByID(ctx context.Context, id string) (member.Member, error)
}

// Notifier receives member lifecycle alerts. A nil Notifier is allowed.
type Notifier interface {
	Notify(ctx context.Context, a alert.Alert)
}

// RegisterMemberInput carries input for the orchestrator.
type RegisterMemberInput struct {
	FullName  string `json:"fullName" validate:"notblank,max=100"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// RegisterMemberDeps holds dependencies for RegisterMember.
type RegisterMemberDeps struct {
	MemberStore MemberStore
	Notifier    Notifier
	Now         func() time.Time
	GenerateID  func() string
}

// ExecuteRegisterMember coordinates member registration.
// PRE: Name of 2-100 characters, YYYY-MM-DD dates with end after start
// POST: Member created with a fresh ID and CreatedAt, no portrait
func ExecuteRegisterMember(ctx context.Context, input RegisterMemberInput, deps RegisterMemberDeps) (member.Member, error) {
	if err := validateInput(input); err != nil {
		return member.Member{}, err
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	genID := uuid.NewString
	if deps.GenerateID != nil {
		genID = deps.GenerateID
	}

	m := member.Member{ID: genID(), CreatedAt: now()}
	if err := applyMemberFields(&m, input.FullName, input.StartDate, input.EndDate); err != nil {
		return member.Member{}, err
	}

	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return member.Member{}, err
	}

	slog.Info("member_event", "event", "member_registered", "member_id", m.ID)
	notifyMember(ctx, deps.Notifier, alert.KindMemberSaved, "Member registered", m)
	return m, nil
}

// applyMemberFields parses the editable fields into m and runs domain validation.
func applyMemberFields(m *member.Member, fullName, startDate, endDate string) error {
	start, err := member.ParseDate(startDate)
	if err != nil {
		return &ValidationError{Fields: map[string]string{"startDate": "startDate must be a YYYY-MM-DD date"}}
	}
	end, err := member.ParseDate(endDate)
	if err != nil {
		return &ValidationError{Fields: map[string]string{"endDate": "endDate must be a YYYY-MM-DD date"}}
	}
	m.FullName = strings.TrimSpace(fullName)
	m.StartDate = start
	m.EndDate = end
	return m.Validate()
}

func notifyMember(ctx context.Context, n Notifier, kind alert.Kind, title string, m member.Member) {
	if n == nil {
		return
	}
	a := alert.New(kind, title, m.FullName)
	a.MemberID = m.ID
	n.Notify(ctx, a)
}
