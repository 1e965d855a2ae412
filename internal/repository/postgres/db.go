package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Open creates a connection pool and verifies connectivity.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Store bundles the postgres repositories sharing one pool.
type Store struct {
	Users   *UserRepository
	Posts   *PostRepository
	Follows *FollowRepository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Users:   &UserRepository{db: pool},
		Posts:   &PostRepository{db: pool},
		Follows: &FollowRepository{db: pool},
	}
}

// Init creates every table; users first so foreign keys resolve.
func (s *Store) Init(ctx context.Context) error {
	if err := s.Users.Init(ctx); err != nil {
		return err
	}
	if err := s.Posts.Init(ctx); err != nil {
		return err
	}
	return s.Follows.Init(ctx)
}

func execAll(ctx context.Context, pool *pgxpool.Pool, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// constraintViolated reports the violated unique constraint name, if any.
func constraintViolated(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
