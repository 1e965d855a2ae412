package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"microblog/internal/domain"
	"microblog/internal/repository"
)

var createPostsTable = []string{`
CREATE TABLE IF NOT EXISTS posts (
	id BIGSERIAL PRIMARY KEY,
	body VARCHAR(140) NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	user_id BIGINT NOT NULL REFERENCES users(id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_timestamp ON posts (timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts (user_id)`,
}

const postColumns = `
	p.id, p.body, p.timestamp, p.user_id,
	u.id, u.username, u.email, u.about_me, u.last_seen, u.created_at, u.updated_at`

type PostRepository struct {
	db *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) repository.PostRepository {
	return &PostRepository{db: pool}
}

func (r *PostRepository) Init(ctx context.Context) error {
	if err := execAll(ctx, r.db, createPostsTable...); err != nil {
		return fmt.Errorf("create posts table: %w", err)
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) (int64, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO posts (body, timestamp, user_id)
		VALUES (@body, @timestamp, @user_id)
		RETURNING id
	`, pgx.NamedArgs{
		"body":      post.Body,
		"timestamp": post.Timestamp.UTC(),
		"user_id":   post.UserID,
	}).Scan(&post.ID)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return post.ID, nil
}

func (r *PostRepository) ListFollowed(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error) {
	return r.list(ctx, req,
		`p.user_id = @user_id OR p.user_id IN (SELECT followed_id FROM followers WHERE follower_id = @user_id)`,
		pgx.NamedArgs{"user_id": userID},
	)
}

func (r *PostRepository) ListByUser(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error) {
	return r.list(ctx, req, `p.user_id = @user_id`, pgx.NamedArgs{"user_id": userID})
}

func (r *PostRepository) ListAll(ctx context.Context, req domain.PageRequest) (domain.Page[domain.Post], error) {
	return r.list(ctx, req, `TRUE`, pgx.NamedArgs{})
}

func (r *PostRepository) list(ctx context.Context, req domain.PageRequest, where string, args pgx.NamedArgs) (domain.Page[domain.Post], error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts p WHERE `+where, args).Scan(&total); err != nil {
		return domain.Page[domain.Post]{}, fmt.Errorf("count posts: %w", err)
	}
	if req.Offset() >= total {
		return domain.NewPage[domain.Post](req, nil, total), nil
	}

	pageArgs := pgx.NamedArgs{"limit": req.Limit(), "offset": req.Offset()}
	for k, v := range args {
		pageArgs[k] = v
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE `+where+`
		ORDER BY p.timestamp DESC, p.id DESC
		LIMIT @limit OFFSET @offset
	`, pageArgs)
	if err != nil {
		return domain.Page[domain.Post]{}, fmt.Errorf("list posts: %w", err)
	}

	posts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Post, error) {
		var (
			post   domain.Post
			author domain.User
		)
		err := row.Scan(
			&post.ID, &post.Body, &post.Timestamp, &post.UserID,
			&author.ID, &author.Username, &author.Email, &author.AboutMe,
			&author.LastSeen, &author.CreatedAt, &author.UpdatedAt,
		)
		post.Author = &author
		return post, err
	})
	if err != nil {
		return domain.Page[domain.Post]{}, fmt.Errorf("scan posts: %w", err)
	}
	return domain.NewPage(req, posts, total), nil
}
