package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"microblog/internal/repository"
)

const createFollowersTable = `
CREATE TABLE IF NOT EXISTS followers (
	follower_id INTEGER NOT NULL REFERENCES users(id),
	followed_id INTEGER NOT NULL REFERENCES users(id),
	PRIMARY KEY (follower_id, followed_id)
);
CREATE INDEX IF NOT EXISTS idx_followers_followed ON followers(followed_id);
`

type FollowRepository struct {
	db *sql.DB
}

func NewFollowRepository(db *sql.DB) repository.FollowRepository {
	return &FollowRepository{db: db}
}

func (r *FollowRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createFollowersTable); err != nil {
		return fmt.Errorf("create followers table: %w", err)
	}
	return nil
}

func (r *FollowRepository) Insert(ctx context.Context, followerID, followedID int64) error {
	if _, err := r.db.ExecContext(ctx, `
INSERT INTO followers (follower_id, followed_id) VALUES (?, ?)
ON CONFLICT (follower_id, followed_id) DO NOTHING`,
		followerID, followedID,
	); err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

func (r *FollowRepository) Delete(ctx context.Context, followerID, followedID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM followers WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

func (r *FollowRepository) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM followers WHERE follower_id = ? AND followed_id = ?)`,
		followerID, followedID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return exists, nil
}

func (r *FollowRepository) CountFollowers(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM followers WHERE followed_id = ?`, userID)
}

func (r *FollowRepository) CountFollowing(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM followers WHERE follower_id = ?`, userID)
}

func (r *FollowRepository) count(ctx context.Context, query string, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count follows: %w", err)
	}
	return n, nil
}
