package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"microblog/internal/auth"
	"microblog/internal/domain"
	"microblog/internal/repository"
	"microblog/internal/repository/sqlite"
	"microblog/internal/tokenstore"
)

type fixture struct {
	db       *sql.DB
	store    *sqlite.Store
	users    *userService
	social   SocialService
	timeline *timelineService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := sqlite.NewStore(db)
	require.NoError(t, store.Init(context.Background()))

	users := NewUserService(store.Users, auth.NewTokens("test-secret"), tokenstore.NewMemory(), UserServiceConfig{
		BcryptCost: bcrypt.MinCost,
	}).(*userService)

	return &fixture{
		db:       db,
		store:    store,
		users:    users,
		social:   NewSocialService(store.Follows),
		timeline: NewTimelineService(store.Posts, 3).(*timelineService),
	}
}

func (f *fixture) register(t *testing.T, username string) *domain.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), username, username+"@example.com", "cat")
	require.NoError(t, err)
	return user
}

func countUsers(t *testing.T, f *fixture) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Register(ctx, " john ", "John@Example.com", "cat")
	require.NoError(t, err)
	assert.Equal(t, "john", user.Username)
	assert.Equal(t, "john@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)

	stored, err := f.store.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "cat", stored.PasswordHash)

	got, err := f.users.Authenticate(ctx, "john", "cat")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.users.Authenticate(ctx, "john", "dog")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Authenticate(ctx, "nobody", "cat")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "john")

	_, err := f.users.Register(ctx, "john", "other@example.com", "x")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = f.users.Register(ctx, "other", "JOHN@example.com", "x")
	assert.ErrorIs(t, err, ErrEmailTaken)

	assert.Equal(t, 1, countUsers(t, f))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.register(t, "john")
	f.register(t, "susan")

	updated, err := f.users.UpdateProfile(ctx, john.ID, "john", "I like cats")
	require.NoError(t, err)
	assert.Equal(t, "I like cats", updated.AboutMe)

	_, err = f.users.UpdateProfile(ctx, john.ID, "susan", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = f.users.UpdateProfile(ctx, john.ID, "johnny", string(make([]rune, domain.MaxAboutMeLen+1)))
	assert.Error(t, err)

	renamed, err := f.users.UpdateProfile(ctx, john.ID, "johnny", "")
	require.NoError(t, err)
	assert.Equal(t, "johnny", renamed.Username)
}

func TestTouchAdvancesLastSeen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.register(t, "john")

	later := time.Now().Add(time.Hour).UTC()
	f.users.now = func() time.Time { return later }
	require.NoError(t, f.users.Touch(ctx, john.ID))

	got, err := f.users.GetByID(ctx, john.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, later, got.LastSeen, time.Millisecond)

	assert.ErrorIs(t, f.users.Touch(ctx, 999), ErrUserNotFound)
}

func TestResetPasswordFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.register(t, "john")

	token, err := f.users.IssueResetToken(ctx, john)
	require.NoError(t, err)

	got, err := f.users.VerifyResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, john.ID, got.ID)

	_, err = f.users.ResetPassword(ctx, token, "dog")
	require.NoError(t, err)

	_, err = f.users.Authenticate(ctx, "john", "cat")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Authenticate(ctx, "john", "dog")
	require.NoError(t, err)

	// single use
	_, err = f.users.VerifyResetToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = f.users.ResetPassword(ctx, token, "bird")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type failingPasswordRepo struct {
	repository.UserRepository
	err error
}

func (r *failingPasswordRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if r.err != nil {
		return r.err
	}
	return r.UserRepository.UpdatePassword(ctx, id, passwordHash)
}

func TestResetTokenSurvivesFailedUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.register(t, "john")

	repo := &failingPasswordRepo{UserRepository: f.store.Users, err: errors.New("disk full")}
	f.users.users = repo

	token, err := f.users.IssueResetToken(ctx, john)
	require.NoError(t, err)

	_, err = f.users.ResetPassword(ctx, token, "dog")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)

	_, err = f.users.VerifyResetToken(ctx, token)
	require.NoError(t, err)

	repo.err = nil
	_, err = f.users.ResetPassword(ctx, token, "dog")
	require.NoError(t, err)
	_, err = f.users.Authenticate(ctx, "john", "dog")
	require.NoError(t, err)

	_, err = f.users.ResetPassword(ctx, token, "bird")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetTokenExpiresAfterWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.register(t, "john")

	start := time.Now()
	clock := start
	f.users.tokens = f.users.tokens.WithClock(func() time.Time { return clock })

	token, err := f.users.IssueResetToken(ctx, john)
	require.NoError(t, err)

	clock = start.Add(10*time.Minute + time.Second)
	_, err = f.users.VerifyResetToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.users.VerifyResetToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFollowUnfollow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.register(t, "john")
	susan := f.register(t, "susan")

	ok, err := f.social.IsFollowing(ctx, john.ID, susan.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.social.Follow(ctx, john.ID, susan.ID))
	require.NoError(t, f.social.Follow(ctx, john.ID, susan.ID))

	ok, err = f.social.IsFollowing(ctx, john.ID, susan.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	counts, err := f.social.Counts(ctx, susan.ID)
	require.NoError(t, err)
	assert.Equal(t, FollowCounts{Followers: 1, Following: 0}, counts)

	ok, err = f.social.IsFollowing(ctx, susan.ID, john.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.social.Unfollow(ctx, john.ID, susan.ID))
	require.NoError(t, f.social.Unfollow(ctx, john.ID, susan.ID))

	ok, err = f.social.IsFollowing(ctx, john.ID, susan.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreatePostValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.register(t, "john")

	_, err := f.timeline.CreatePost(ctx, john.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidPost)

	long := make([]rune, domain.MaxPostLen+1)
	for i := range long {
		long[i] = 'é'
	}
	_, err = f.timeline.CreatePost(ctx, john.ID, string(long))
	assert.ErrorIs(t, err, ErrInvalidPost)

	post, err := f.timeline.CreatePost(ctx, john.ID, string(long[:domain.MaxPostLen]))
	require.NoError(t, err)
	assert.NotZero(t, post.ID)
}

func TestFollowedPosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.register(t, "john")
	susan := f.register(t, "susan")
	mary := f.register(t, "mary")
	david := f.register(t, "david")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, author := range []*domain.User{john, susan, mary, david} {
		f.timeline.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		_, err := f.timeline.CreatePost(ctx, author.ID, fmt.Sprintf("post from %s", author.Username))
		require.NoError(t, err)
	}

	require.NoError(t, f.social.Follow(ctx, john.ID, susan.ID))
	require.NoError(t, f.social.Follow(ctx, john.ID, david.ID))
	require.NoError(t, f.social.Follow(ctx, susan.ID, mary.ID))
	require.NoError(t, f.social.Follow(ctx, mary.ID, david.ID))

	page, err := f.timeline.FollowedPosts(ctx, john.ID, domain.PageRequest{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"post from david", "post from susan", "post from john"}, bodies(page.Items))
	assert.False(t, page.HasNext())

	// own posts appear even without a self edge
	page, err = f.timeline.FollowedPosts(ctx, david.ID, domain.PageRequest{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"post from david"}, bodies(page.Items))

	explore, err := f.timeline.Explore(ctx, domain.PageRequest{Page: 1})
	require.NoError(t, err)
	assert.Len(t, explore.Items, 3)
	assert.True(t, explore.HasNext())
	assert.Equal(t, 2, explore.NextNum())

	second, err := f.timeline.Explore(ctx, domain.PageRequest{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"post from john"}, bodies(second.Items))

	mine, err := f.timeline.UserPosts(ctx, mary.ID, domain.PageRequest{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"post from mary"}, bodies(mine.Items))
}

func bodies(posts []domain.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Body
	}
	return out
}
