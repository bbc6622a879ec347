package projections

import (
	"context"

	"accesspanel/internal/adapters/storage/member"
	domainMember "accesspanel/internal/domain/member"
)

// MemberStore interface for member queries.
type MemberStore interface {
	GetByID(ctx context.Context, id string) (domainMember.Member, error)
	List(ctx context.Context, filter member.ListFilter) ([]domainMember.Member, error)
	Count(ctx context.Context, search string) (int, error)
}
