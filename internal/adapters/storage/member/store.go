package member

import (
	"context"

	domain "accesspanel/internal/domain/member"
)

// Store persists Member state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Member, error)
	Save(ctx context.Context, value domain.Member) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Member, error)
	ListAll(ctx context.Context) ([]domain.Member, error)
	Count(ctx context.Context, search string) (int, error)
}

// ListFilter carries filtering parameters for List operations.
// A zero Limit means no limit.
type ListFilter struct {
	Limit  int
	Offset int
	Search string
}
