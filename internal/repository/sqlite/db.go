package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a sqlite database at the given path and ensures directories exist.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// a single connection serializes writers and keeps pragmas applied
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return db, nil
}

// Store bundles the sqlite repositories sharing one handle.
type Store struct {
	Users   *UserRepository
	Posts   *PostRepository
	Follows *FollowRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		Users:   &UserRepository{db: db},
		Posts:   &PostRepository{db: db},
		Follows: &FollowRepository{db: db},
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

func isUniqueViolation(err error, column string) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") && strings.Contains(msg, column)
}
