package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"microblog/internal/domain"
	"microblog/internal/repository"
)

var createUsersTable = []string{`
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username VARCHAR(64) NOT NULL,
	email VARCHAR(120) NOT NULL,
	password_hash TEXT NOT NULL,
	about_me VARCHAR(140) NOT NULL DEFAULT '',
	last_seen TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT users_username_key UNIQUE (username),
	CONSTRAINT users_email_key UNIQUE (email)
)`,
	`CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))`,
}

const userColumns = `id, username, email, password_hash, about_me, last_seen, created_at, updated_at`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &UserRepository{db: pool}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if err := execAll(ctx, r.db, createUsersTable...); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.LastSeen.IsZero() {
		user.LastSeen = now
	}

	q := `
		INSERT INTO users (username, email, password_hash, about_me, last_seen, created_at, updated_at)
		VALUES (@username, @email, @password_hash, @about_me, @last_seen, @created_at, @updated_at)
		RETURNING id
	`
	args := pgx.NamedArgs{
		"username":      user.Username,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"about_me":      user.AboutMe,
		"last_seen":     user.LastSeen,
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
	}

	if err := r.db.QueryRow(ctx, q, args).Scan(&user.ID); err != nil {
		return 0, translateUserError("insert user", err)
	}
	return user.ID, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, username, aboutMe string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	var owner int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&owner)
	switch {
	case err == nil && owner != id:
		return repository.ErrDuplicateUsername
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("check username: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users SET username = @username, about_me = @about_me, updated_at = @updated_at
		WHERE id = @id
	`, pgx.NamedArgs{
		"id":         id,
		"username":   username,
		"about_me":   aboutMe,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return translateUserError("update profile", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) TouchLastSeen(ctx context.Context, id int64, seen time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET last_seen = $1 WHERE id = $2`, seen.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func translateUserError(op string, err error) error {
	if name, ok := constraintViolated(err); ok {
		switch name {
		case "users_username_key":
			return repository.ErrDuplicateUsername
		case "users_email_key":
			return repository.ErrDuplicateEmail
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AboutMe,
		&user.LastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
