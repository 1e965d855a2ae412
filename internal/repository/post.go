package repository

import (
	"context"

	"microblog/internal/domain"
)

// PostRepository stores posts and serves the ordered listings built from them.
// Every listing is ordered newest first with ties broken by descending id.
type PostRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, post *domain.Post) (int64, error)
	// ListFollowed returns posts authored by userID or by anyone userID follows.
	ListFollowed(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error)
	ListByUser(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error)
	ListAll(ctx context.Context, req domain.PageRequest) (domain.Page[domain.Post], error)
}
