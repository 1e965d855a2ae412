package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"microblog/internal/repository"
)

var createFollowersTable = []string{`
CREATE TABLE IF NOT EXISTS followers (
	follower_id BIGINT NOT NULL REFERENCES users(id),
	followed_id BIGINT NOT NULL REFERENCES users(id),
	PRIMARY KEY (follower_id, followed_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_followers_followed ON followers (followed_id)`,
}

type FollowRepository struct {
	db *pgxpool.Pool
}

func NewFollowRepository(pool *pgxpool.Pool) repository.FollowRepository {
	return &FollowRepository{db: pool}
}

func (r *FollowRepository) Init(ctx context.Context) error {
	if err := execAll(ctx, r.db, createFollowersTable...); err != nil {
		return fmt.Errorf("create followers table: %w", err)
	}
	return nil
}

func (r *FollowRepository) Insert(ctx context.Context, followerID, followedID int64) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO followers (follower_id, followed_id) VALUES ($1, $2)
		ON CONFLICT (follower_id, followed_id) DO NOTHING
	`, followerID, followedID); err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

func (r *FollowRepository) Delete(ctx context.Context, followerID, followedID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM followers WHERE follower_id = $1 AND followed_id = $2`,
		followerID, followedID); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

func (r *FollowRepository) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM followers WHERE follower_id = $1 AND followed_id = $2)`,
		followerID, followedID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return exists, nil
}

func (r *FollowRepository) CountFollowers(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM followers WHERE followed_id = $1`, userID)
}

func (r *FollowRepository) CountFollowing(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM followers WHERE follower_id = $1`, userID)
}

func (r *FollowRepository) count(ctx context.Context, query string, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count follows: %w", err)
	}
	return n, nil
}
