package storage

import (
	"context"
	"errors"

	"github.com/koopa0/system-design/item-cache/internal"
	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ internal.Cache = (*Redis)(nil)

// Redis Redis 快取層實現
//
// 鍵不設過期時間，一致性完全由寫入時的覆寫與刪除維持。
type Redis struct {
	client redis.UniversalClient
}

// NewRedis 創建 Redis 快取
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Get 讀取快取，redis.Nil 轉為 internal.ErrCacheMiss
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, internal.ErrCacheMiss
		}
		return nil, apperrors.CacheFailure(err, "get "+key)
	}
	return data, nil
}

// Set 寫入快取
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return apperrors.CacheFailure(err, "set "+key)
	}
	return nil
}

// Delete 刪除快取，DEL 對不存在的鍵回傳 0 而非錯誤
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return apperrors.CacheFailure(err, "del "+key)
	}
	return nil
}

// Ping 檢查連線
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
