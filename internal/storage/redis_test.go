package storage_test

import (
	"context"
	"testing"

	"github.com/koopa0/system-design/item-cache/internal/storage"
	"github.com/koopa0/system-design/item-cache/internal/testutils"
	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis(t *testing.T) {
	env := testutils.SetupRedis(t)

	cache := storage.NewRedis(env.RedisClient)
	require.NoError(t, cache.Ping(context.Background()))

	testCache(t, cache)
}

// TestRedis_NoExpiry 鍵不設過期時間
func TestRedis_NoExpiry(t *testing.T) {
	env := testutils.SetupRedis(t)
	ctx := context.Background()

	cache := storage.NewRedis(env.RedisClient)
	require.NoError(t, cache.Set(ctx, "item:1", []byte("{}")))

	ttl, err := env.RedisClient.TTL(ctx, "item:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), int64(ttl), "persistent keys report TTL -1")
}

// TestRedis_Unavailable 連線失敗轉為 SERVICE_UNAVAILABLE
func TestRedis_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	cache := storage.NewRedis(client)
	ctx := context.Background()

	_, err := cache.Get(ctx, "item:1")
	assert.True(t, apperrors.IsUnavailable(err))

	assert.True(t, apperrors.IsUnavailable(cache.Set(ctx, "item:1", []byte("{}"))))
	assert.True(t, apperrors.IsUnavailable(cache.Delete(ctx, "item:1")))
	assert.Error(t, cache.Ping(ctx))
}
