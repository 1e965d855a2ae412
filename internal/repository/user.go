package repository

import (
	"context"
	"errors"
	"time"

	"microblog/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateUsername is returned when a write violates username uniqueness.
	ErrDuplicateUsername = errors.New("duplicate username")
	// ErrDuplicateEmail is returned when a write violates email uniqueness.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// UpdateProfile changes username and about_me in one transaction.
	UpdateProfile(ctx context.Context, id int64, username, aboutMe string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	TouchLastSeen(ctx context.Context, id int64, seen time.Time) error
}
