// Package storage 實現 Store 與 Cache 的各種後端
//
// Store：
//   - Postgres（pgxpool，生產環境）
//   - SQLite（modernc，單機部署）
//   - MemoryStore（開發、測試）
//
// Cache：
//   - Redis（go-redis，生產環境）
//   - Memcache（gomemcache）
//   - MemoryCache（開發、測試）
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/koopa0/system-design/item-cache/internal"
	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
)

var (
	_ internal.Store = (*MemoryStore)(nil)
	_ internal.Cache = (*MemoryCache)(nil)
)

// MemoryStore 內存存儲實現
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[int64]internal.Item
	nextID int64
}

// NewMemoryStore 創建內存存儲實例
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[int64]internal.Item),
		nextID: 1,
	}
}

// GetByID 依 ID 讀取項目
func (m *MemoryStore) GetByID(ctx context.Context, id int64) (internal.Item, error) {
	if err := ctx.Err(); err != nil {
		return internal.Item{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return internal.Item{}, apperrors.ErrItemNotFound
	}
	return item, nil
}

// ListAll 依 ID 遞增回傳所有項目
func (m *MemoryStore) ListAll(ctx context.Context) ([]internal.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]internal.Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

// Insert 新增項目並分配 ID
func (m *MemoryStore) Insert(ctx context.Context, name, description string) (internal.Item, error) {
	if err := ctx.Err(); err != nil {
		return internal.Item{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item := internal.Item{ID: m.nextID, Name: name, Description: description}
	m.items[item.ID] = item
	m.nextID++

	return item, nil
}

// UpdateFields 更新名稱與描述
func (m *MemoryStore) UpdateFields(ctx context.Context, id int64, name, description string) (internal.Item, error) {
	if err := ctx.Err(); err != nil {
		return internal.Item{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return internal.Item{}, apperrors.ErrItemNotFound
	}
	item.Name = name
	item.Description = description
	m.items[id] = item

	return item, nil
}

// DeleteByID 刪除項目
func (m *MemoryStore) DeleteByID(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return apperrors.ErrItemNotFound
	}
	delete(m.items, id)

	return nil
}

// Ping 永遠就緒
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// MemoryCache 內存快取實現，無過期與淘汰
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryCache 創建內存快取
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string][]byte),
	}
}

// Get 讀取快取，未命中回傳 internal.ErrCacheMiss
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.data[key]
	if !ok {
		return nil, internal.ErrCacheMiss
	}

	// 返回副本，防止外部修改
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set 寫入快取
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = stored
	return nil
}

// Delete 刪除快取，鍵不存在不算錯誤
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	return nil
}

// Ping 永遠就緒
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Len 回傳目前鍵數量
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
