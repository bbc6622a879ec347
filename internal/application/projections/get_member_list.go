package projections

import (
	"context"
	"strings"
	"time"

	"accesspanel/internal/adapters/storage/member"
	domainMember "accesspanel/internal/domain/member"
)

// DefaultPageSize applies when the query leaves Limit at zero.
const DefaultPageSize = 100

// GetMemberListQuery carries query parameters.
type GetMemberListQuery struct {
	Search string
	Limit  int
	Offset int
}

// MemberView is a member with its membership standing as of today.
type MemberView struct {
	domainMember.Member
	Membership    domainMember.MembershipStatus `json:"membership"`
	DaysRemaining int                           `json:"daysRemaining"`
	StatusMessage string                        `json:"statusMessage"`
	Initial       string                        `json:"initial"`
}

// GetMemberListResult carries the query result.
type GetMemberListResult struct {
	Members []MemberView `json:"members"`
	Total   int          `json:"total"`
}

// GetMemberListDeps holds dependencies for GetMemberList.
type GetMemberListDeps struct {
	MemberStore MemberStore
	Now         func() time.Time
}

// QueryGetMemberList retrieves a page of members with their membership status.
// PRE: Limit and Offset are non-negative
// POST: Members newest first; Total counts every match of Search
func QueryGetMemberList(ctx context.Context, query GetMemberListQuery, deps GetMemberListDeps) (GetMemberListResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	search := strings.TrimSpace(query.Search)

	members, err := deps.MemberStore.List(ctx, member.ListFilter{
		Limit:  limit,
		Offset: max(query.Offset, 0),
		Search: search,
	})
	if err != nil {
		return GetMemberListResult{}, err
	}
	total, err := deps.MemberStore.Count(ctx, search)
	if err != nil {
		return GetMemberListResult{}, err
	}

	today := today(deps.Now)
	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, newMemberView(m, today))
	}
	return GetMemberListResult{Members: views, Total: total}, nil
}

// GetMemberDeps holds dependencies for GetMember.
type GetMemberDeps struct {
	MemberStore MemberStore
	Now         func() time.Time
}

// QueryGetMember retrieves one member with its membership status.
// POST: Returns domainMember.ErrNotFound (wrapped) for an unknown id
func QueryGetMember(ctx context.Context, id string, deps GetMemberDeps) (MemberView, error) {
	m, err := deps.MemberStore.GetByID(ctx, id)
	if err != nil {
		return MemberView{}, err
	}
	return newMemberView(m, today(deps.Now)), nil
}

func newMemberView(m domainMember.Member, today time.Time) MemberView {
	days := domainMember.DaysRemaining(m.EndDate, today)
	status := m.Status(today)
	return MemberView{
		Member:        m,
		Membership:    status,
		DaysRemaining: days,
		StatusMessage: domainMember.StatusMessage(status, days),
		Initial:       m.Initial(),
	}
}

func today(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
