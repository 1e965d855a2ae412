package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microblog/internal/domain"
	"microblog/internal/repository"
)

// newTestStore connects to MICROBLOG_TEST_POSTGRES_URL and empties every table.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("MICROBLOG_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("MICROBLOG_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewStore(pool)
	require.NoError(t, store.Init(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE followers, posts, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return store
}

func mustCreateUser(t *testing.T, store *Store, username string) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, Email: username + "@example.com", PasswordHash: "hash"}
	_, err := store.Users.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	john := mustCreateUser(t, store, "john")
	mustCreateUser(t, store, "susan")

	_, err := store.Users.Create(ctx, &domain.User{Username: "john", Email: "x@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicateUsername)
	_, err = store.Users.Create(ctx, &domain.User{Username: "x", Email: "john@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	got, err := store.Users.GetByEmail(ctx, "John@Example.com")
	require.NoError(t, err)
	assert.Equal(t, john.ID, got.ID)

	assert.ErrorIs(t, store.Users.UpdateProfile(ctx, john.ID, "susan", ""), repository.ErrDuplicateUsername)
	require.NoError(t, store.Users.UpdateProfile(ctx, john.ID, "johnny", "hi"))

	got, err = store.Users.GetByUsername(ctx, "johnny")
	require.NoError(t, err)
	assert.Equal(t, "hi", got.AboutMe)

	_, err = store.Users.GetByID(ctx, 12345)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTimeline(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	john := mustCreateUser(t, store, "john")
	susan := mustCreateUser(t, store, "susan")
	mary := mustCreateUser(t, store, "mary")

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, author := range []*domain.User{john, susan, mary, susan} {
		_, err := store.Posts.Create(ctx, &domain.Post{Body: author.Username, UserID: author.ID, Timestamp: ts.Add(time.Duration(i%2) * time.Second)})
		require.NoError(t, err)
	}

	require.NoError(t, store.Follows.Insert(ctx, john.ID, susan.ID))
	require.NoError(t, store.Follows.Insert(ctx, john.ID, susan.ID))

	page, err := store.Posts.ListFollowed(ctx, john.ID, domain.PageRequest{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.Total)
	// two posts at ts+1s: the later id (susan's second) comes first
	assert.Equal(t, int64(4), page.Items[0].ID)
	assert.Equal(t, int64(2), page.Items[1].ID)
	assert.Equal(t, int64(1), page.Items[2].ID)

	n, err := store.Follows.CountFollowers(ctx, susan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Follows.Delete(ctx, john.ID, susan.ID))
	ok, err := store.Follows.Exists(ctx, john.ID, susan.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
