// Package internal 包含項目服務的核心業務邏輯實現
//
// ItemCache 以 Cache-Aside 模式協調 Store 與 Cache：
//   - 讀取：先查快取，未命中時查資料庫並回填快取
//   - 單一項目寫入：更新資料庫後覆寫快取（refresh-on-write）
//   - 清單：任何寫入都刪除 items:all，下次讀取時重建
//
// 快取失敗一律在此吸收並記錄，不會讓請求失敗；資料庫失敗則回傳給呼叫者。
// 本層不持有鎖，同一 id 的並發寫入可能讓快取與資料庫短暫不一致。
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
)

// CacheErrorHook 快取失敗時的觀測回呼
type CacheErrorHook func(ctx context.Context, op, key string, err error)

// Option 設定 ItemCache 的選項
type Option func(*ItemCache)

// WithCacheErrorHook 註冊快取失敗回呼
func WithCacheErrorHook(hook CacheErrorHook) Option {
	return func(c *ItemCache) {
		c.onCacheError = hook
	}
}

// Stats 快取統計
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	CacheErrors int64 `json:"cache_errors"`
	Populations int64 `json:"populations"`
}

// ItemCache Cache-Aside 協調器
type ItemCache struct {
	store  Store
	cache  Cache
	logger *slog.Logger

	asyncPopulate bool
	opTimeout     time.Duration
	onCacheError  CacheErrorHook

	hits        atomic.Int64
	misses      atomic.Int64
	cacheErrors atomic.Int64
	populations atomic.Int64

	// 非同步回填；mu 保證 wg.Add 不會與 Shutdown 的 Wait 並行
	mu     sync.RWMutex
	wg     sync.WaitGroup
	closed bool
}

// NewItemCache 創建協調器實例
func NewItemCache(store Store, cache Cache, config *Config, logger *slog.Logger, opts ...Option) *ItemCache {
	if logger == nil {
		logger = slog.Default()
	}

	c := &ItemCache{
		store:  store,
		cache:  cache,
		logger: logger.With("component", "item_cache"),
	}
	if config != nil {
		c.asyncPopulate = config.Cache.AsyncPopulate
		c.opTimeout = config.Cache.OpTimeout
	}
	if c.opTimeout <= 0 {
		c.opTimeout = defaultCacheOpTimeout
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchItem 讀取單一項目
func (c *ItemCache) FetchItem(ctx context.Context, id int64) (Item, Source, error) {
	key := ItemKey(id)

	if data, ok := c.cacheGet(ctx, key); ok {
		item, err := DecodeItem(data)
		if err == nil && item.ID != id {
			err = fmt.Errorf("cached item id %d does not match key %s", item.ID, key)
		}
		if err == nil {
			c.hits.Add(1)
			return item, SourceCache, nil
		}
		// 無法解析的快取內容視同未命中
		c.cacheFailed(ctx, "decode", key, err)
	}
	c.misses.Add(1)

	item, err := c.store.GetByID(ctx, id)
	if err != nil {
		return Item{}, "", err
	}

	data, err := EncodeItem(item)
	if err != nil {
		c.cacheFailed(ctx, "encode", key, err)
		return item, SourceStore, nil
	}
	c.populate(ctx, key, data)

	return item, SourceStore, nil
}

// FetchAllItems 讀取整份清單
//
// 清單只會整份快取或整份重算，不由單一項目組合。
func (c *ItemCache) FetchAllItems(ctx context.Context) ([]Item, Source, error) {
	if data, ok := c.cacheGet(ctx, AllItemsKey); ok {
		items, err := DecodeItems(data)
		if err == nil {
			c.hits.Add(1)
			return items, SourceCache, nil
		}
		c.cacheFailed(ctx, "decode", AllItemsKey, err)
	}
	c.misses.Add(1)

	items, err := c.store.ListAll(ctx)
	if err != nil {
		return nil, "", err
	}
	if items == nil {
		items = []Item{}
	}

	data, err := EncodeItems(items)
	if err != nil {
		c.cacheFailed(ctx, "encode", AllItemsKey, err)
		return items, SourceStore, nil
	}
	c.populate(ctx, AllItemsKey, data)

	return items, SourceStore, nil
}

// CreateItem 新增項目
//
// 新項目的單一快取不預先寫入，下次讀取會未命中。
func (c *ItemCache) CreateItem(ctx context.Context, name, description string) (Item, error) {
	item, err := c.store.Insert(ctx, name, description)
	if err != nil {
		return Item{}, err
	}

	c.cacheDelete(ctx, AllItemsKey)

	return item, nil
}

// UpdateItem 更新項目並覆寫其單一快取
func (c *ItemCache) UpdateItem(ctx context.Context, id int64, name, description string) error {
	item, err := c.store.UpdateFields(ctx, id, name, description)
	if err != nil {
		return err
	}

	key := ItemKey(id)
	if data, err := EncodeItem(item); err != nil {
		c.cacheFailed(ctx, "encode", key, err)
		// 無法覆寫時退而刪除，避免留下舊值
		c.cacheDelete(ctx, key)
	} else {
		c.cacheSet(ctx, key, data)
	}
	c.cacheDelete(ctx, AllItemsKey)

	return nil
}

// DeleteItem 刪除項目及其快取
func (c *ItemCache) DeleteItem(ctx context.Context, id int64) error {
	if err := c.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	c.cacheDelete(ctx, ItemKey(id))
	c.cacheDelete(ctx, AllItemsKey)

	return nil
}

// Stats 回傳目前統計
func (c *ItemCache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		CacheErrors: c.cacheErrors.Load(),
		Populations: c.populations.Load(),
	}
}

// Shutdown 等待進行中的非同步回填，之後的回填改為同步執行
func (c *ItemCache) Shutdown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
}

// populate 讀取未命中後回填快取
func (c *ItemCache) populate(ctx context.Context, key string, data []byte) {
	c.mu.RLock()
	if !c.asyncPopulate || c.closed {
		c.mu.RUnlock()
		if c.cacheSet(ctx, key, data) {
			c.populations.Add(1)
		}
		return
	}
	c.wg.Add(1)
	c.mu.RUnlock()

	// 回填不隨請求取消
	bg := context.WithoutCancel(ctx)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(bg, c.opTimeout)
		defer cancel()

		if c.cacheSet(ctx, key, data) {
			c.populations.Add(1)
		}
	}()
}

func (c *ItemCache) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.cacheFailed(ctx, "get", key, err)
		}
		return nil, false
	}
	return data, true
}

func (c *ItemCache) cacheSet(ctx context.Context, key string, data []byte) bool {
	if err := c.cache.Set(ctx, key, data); err != nil {
		c.cacheFailed(ctx, "set", key, err)
		return false
	}
	return true
}

func (c *ItemCache) cacheDelete(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.cacheFailed(ctx, "delete", key, err)
	}
}

// cacheFailed 記錄並吸收快取錯誤
func (c *ItemCache) cacheFailed(ctx context.Context, op, key string, err error) {
	c.cacheErrors.Add(1)

	if !apperrors.IsUnavailable(err) {
		err = apperrors.CacheFailure(err, fmt.Sprintf("%s %s", op, key))
	}

	c.logger.WarnContext(ctx, "cache operation failed",
		"op", op,
		"key", key,
		"error", err)

	if c.onCacheError != nil {
		c.onCacheError(ctx, op, key, err)
	}
}
