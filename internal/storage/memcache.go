package storage

import (
	"context"
	"errors"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/koopa0/system-design/item-cache/internal"
	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
)

var _ internal.Cache = (*Memcache)(nil)

// Memcache memcached 快取層實現
//
// gomemcache 不接受 context，逾時由 Client.Timeout 控制。
type Memcache struct {
	client *memcache.Client
}

// NewMemcache 創建 memcached 快取
func NewMemcache(client *memcache.Client) *Memcache {
	return &Memcache{client: client}
}

// Get 讀取快取，memcache.ErrCacheMiss 轉為 internal.ErrCacheMiss
func (m *Memcache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	item, err := m.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, internal.ErrCacheMiss
		}
		return nil, apperrors.CacheFailure(err, "get "+key)
	}
	return item.Value, nil
}

// Set 寫入快取，Expiration 為 0 表示不過期
func (m *Memcache) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.client.Set(&memcache.Item{Key: key, Value: value}); err != nil {
		return apperrors.CacheFailure(err, "set "+key)
	}
	return nil
}

// Delete 刪除快取，鍵不存在不算錯誤
func (m *Memcache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := m.client.Delete(key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return apperrors.CacheFailure(err, "delete "+key)
	}
	return nil
}

// Ping 檢查連線
func (m *Memcache) Ping(ctx context.Context) error {
	return m.client.Ping()
}
