package tokenstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	first, err := store.Consume(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.Consume(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	used, err := store.Used(ctx, "a")
	require.NoError(t, err)
	assert.True(t, used)

	used, err = store.Used(ctx, "b")
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, store.Release(ctx, "a"))
	again, err := store.Consume(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestMemoryEvictsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemory()
	store.now = func() time.Time { return now }

	_, err := store.Consume(ctx, "a", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	used, err := store.Used(ctx, "a")
	require.NoError(t, err)
	assert.False(t, used)
	assert.Empty(t, store.seen)
}

func TestRedisConsumeOnce(t *testing.T) {
	addr := os.Getenv("MICROBLOG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MICROBLOG_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	store := NewRedis(client)
	id := uuid.NewString()

	first, err := store.Consume(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.Consume(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.False(t, second)

	used, err := store.Used(ctx, id)
	require.NoError(t, err)
	assert.True(t, used)

	require.NoError(t, store.Release(ctx, id))
	used, err = store.Used(ctx, id)
	require.NoError(t, err)
	assert.False(t, used)
}
