package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"microblog/internal/domain"
	"microblog/internal/repository"
)

const createPostsTable = `
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	body TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	user_id INTEGER NOT NULL REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_posts_timestamp ON posts(timestamp);
CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
`

const postColumns = `
p.id, p.body, p.timestamp, p.user_id,
u.id, u.username, u.email, u.password_hash, u.about_me, u.last_seen, u.created_at, u.updated_at`

const postOrder = ` ORDER BY p.timestamp DESC, p.id DESC`

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) repository.PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPostsTable); err != nil {
		return fmt.Errorf("create posts table: %w", err)
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO posts (body, timestamp, user_id) VALUES (?, ?, ?)`,
		post.Body,
		post.Timestamp.UTC(),
		post.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("post last insert id: %w", err)
	}
	post.ID = id
	return id, nil
}

func (r *PostRepository) ListFollowed(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error) {
	return r.list(ctx, req,
		`p.user_id = ? OR p.user_id IN (SELECT followed_id FROM followers WHERE follower_id = ?)`,
		userID, userID,
	)
}

func (r *PostRepository) ListByUser(ctx context.Context, userID int64, req domain.PageRequest) (domain.Page[domain.Post], error) {
	return r.list(ctx, req, `p.user_id = ?`, userID)
}

func (r *PostRepository) ListAll(ctx context.Context, req domain.PageRequest) (domain.Page[domain.Post], error) {
	return r.list(ctx, req, `1 = 1`)
}

func (r *PostRepository) list(ctx context.Context, req domain.PageRequest, where string, args ...any) (domain.Page[domain.Post], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p WHERE `+where, args...).Scan(&total); err != nil {
		return domain.Page[domain.Post]{}, fmt.Errorf("count posts: %w", err)
	}
	if req.Offset() >= total {
		return domain.NewPage[domain.Post](req, nil, total), nil
	}

	query := `SELECT ` + postColumns + ` FROM posts p JOIN users u ON u.id = p.user_id WHERE ` + where + postOrder + ` LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, req.Limit(), req.Offset())...)
	if err != nil {
		return domain.Page[domain.Post]{}, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, req.Limit())
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return domain.Page[domain.Post]{}, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.Post]{}, fmt.Errorf("iterate posts: %w", err)
	}
	return domain.NewPage(req, posts, total), nil
}

func scanPost(row interface {
	Scan(dest ...any) error
}) (*domain.Post, error) {
	var (
		post   domain.Post
		author domain.User
	)
	if err := row.Scan(
		&post.ID,
		&post.Body,
		&post.Timestamp,
		&post.UserID,
		&author.ID,
		&author.Username,
		&author.Email,
		&author.PasswordHash,
		&author.AboutMe,
		&author.LastSeen,
		&author.CreatedAt,
		&author.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	author.PasswordHash = ""
	post.Author = &author
	return &post, nil
}
