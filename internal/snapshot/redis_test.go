package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStore_CaptureConsume(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t, time.Minute)
	key := NewKey("post", "42")

	require.NoError(t, s.Capture(ctx, key, map[string]any{"title": "Hello"}))
	require.NoError(t, s.Capture(ctx, key, map[string]any{"title": "Overwritten"}))

	data, ok, err := s.Consume(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Hello", data["title"])

	_, ok, err = s.Consume(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStore_MergeKeepsTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Minute)
	key := NewKey("post", "1")

	require.NoError(t, s.Capture(ctx, key, map[string]any{"title": "Hello"}))
	mr.FastForward(30 * time.Second)
	require.NoError(t, s.Merge(ctx, key, map[string]any{"slug": "hello"}))

	ttl := mr.TTL(redisKey(key))
	require.True(t, ttl > 0 && ttl <= 30*time.Second, "ttl = %s", ttl)

	data, ok, err := s.Peek(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Hello", data["title"])
	require.Equal(t, "hello", data["slug"])
}

func TestRedisStore_MergeCreates(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Minute)
	key := NewKey("field_group", "9")

	require.NoError(t, s.Merge(ctx, key, map[string]any{"title": "Hero"}))
	require.Equal(t, time.Minute, mr.TTL(redisKey(key)))
}

func TestRedisStore_ExpiredReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Minute)
	key := NewKey("user", "3")

	require.NoError(t, s.Capture(ctx, key, map[string]any{"email": "a@example.com"}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Consume(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStore_CorruptPayloadReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t, time.Minute)
	key := NewKey("setting", "blogname")

	require.NoError(t, mr.Set(redisKey(key), "{not json"))

	_, ok, err := s.Consume(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}
