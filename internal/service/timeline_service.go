package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"microblog/internal/domain"
	"microblog/internal/repository"
)

// ErrInvalidPost is returned for empty or over-long post bodies.
var ErrInvalidPost = fmt.Errorf("post must be between 1 and %d characters", domain.MaxPostLen)

// TimelineService creates posts and composes the paginated listings of them.
type TimelineService interface {
	CreatePost(ctx context.Context, userID int64, body string) (*domain.Post, error)
	// FollowedPosts is the user's own posts plus those of everyone they follow.
	FollowedPosts(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error)
	UserPosts(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error)
	Explore(ctx context.Context, req domain.PageRequest) (domain.Page[domain.Post], error)
}

type timelineService struct {
	posts   repository.PostRepository
	perPage int
	now     func() time.Time
}

func NewTimelineService(posts repository.PostRepository, perPage int) TimelineService {
	if perPage <= 0 {
		perPage = 3
	}
	return &timelineService{posts: posts, perPage: perPage, now: time.Now}
}

func (s *timelineService) CreatePost(ctx context.Context, userID int64, body string) (*domain.Post, error) {
	body = strings.TrimSpace(body)
	if n := utf8.RuneCountInString(body); n == 0 || n > domain.MaxPostLen {
		return nil, ErrInvalidPost
	}
	if userID <= 0 {
		return nil, errors.New("post author is required")
	}

	post := &domain.Post{
		Body:      body,
		UserID:    userID,
		Timestamp: s.now().UTC(),
	}
	if _, err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *timelineService) FollowedPosts(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error) {
	return s.posts.ListFollowed(ctx, userID, s.normalize(req))
}

func (s *timelineService) UserPosts(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error) {
	return s.posts.ListByUser(ctx, userID, s.normalize(req))
}

func (s *timelineService) Explore(ctx context.Context, req domain.PageRequest) (domain.Page[domain.Post], error) {
	return s.posts.ListAll(ctx, s.normalize(req))
}

func (s *timelineService) normalize(req domain.PageRequest) domain.PageRequest {
	return domain.NewPageRequest(req.Page, req.PerPage, s.perPage)
}
