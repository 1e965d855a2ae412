package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"microblog/internal/domain"
	"microblog/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	about_me TEXT NOT NULL DEFAULT '',
	last_seen DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const userColumns = `id, username, email, password_hash, about_me, last_seen, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
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

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, password_hash, about_me, last_seen, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.AboutMe,
		user.LastSeen.UTC(),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return 0, translateUserError("insert user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	return scanUser(row)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, username, aboutMe string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	var owner int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&owner)
	switch {
	case err == nil && owner != id:
		return repository.ErrDuplicateUsername
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check username: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
UPDATE users SET username = ?, about_me = ?, updated_at = ?
WHERE id = ?`,
		username, aboutMe, time.Now().UTC(), id,
	)
	if err != nil {
		return translateUserError("update profile", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOneRow(res)
}

func (r *UserRepository) TouchLastSeen(ctx context.Context, id int64, seen time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen = ? WHERE id = ?`, seen.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func translateUserError(op string, err error) error {
	switch {
	case isUniqueViolation(err, "users.username"):
		return repository.ErrDuplicateUsername
	case isUniqueViolation(err, "users.email"):
		return repository.ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AboutMe,
		&user.LastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
