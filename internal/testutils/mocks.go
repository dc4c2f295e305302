package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koopa0/system-design/item-cache/internal"
	"github.com/koopa0/system-design/item-cache/internal/storage"
	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
)

// ErrInjected 錯誤注入使用的預設錯誤
var ErrInjected = errors.New("injected failure")

// MockStore 包裝內存存儲，記錄呼叫次數並支援錯誤注入
type MockStore struct {
	*storage.MemoryStore

	// 記錄呼叫次數
	GetCalls    atomic.Int32
	ListCalls   atomic.Int32
	InsertCalls atomic.Int32
	UpdateCalls atomic.Int32
	DeleteCalls atomic.Int32

	// 錯誤注入：開啟後所有操作回傳 store unavailable
	Fail atomic.Bool
}

// NewMockStore 創建新的 MockStore
func NewMockStore() *MockStore {
	return &MockStore{MemoryStore: storage.NewMemoryStore()}
}

func (m *MockStore) failure(op string) error {
	if m.Fail.Load() {
		return apperrors.StoreFailure(ErrInjected, op)
	}
	return nil
}

// GetByID 實作 internal.Store
func (m *MockStore) GetByID(ctx context.Context, id int64) (internal.Item, error) {
	m.GetCalls.Add(1)
	if err := m.failure("get"); err != nil {
		return internal.Item{}, err
	}
	return m.MemoryStore.GetByID(ctx, id)
}

// ListAll 實作 internal.Store
func (m *MockStore) ListAll(ctx context.Context) ([]internal.Item, error) {
	m.ListCalls.Add(1)
	if err := m.failure("list"); err != nil {
		return nil, err
	}
	return m.MemoryStore.ListAll(ctx)
}

// Insert 實作 internal.Store
func (m *MockStore) Insert(ctx context.Context, name, description string) (internal.Item, error) {
	m.InsertCalls.Add(1)
	if err := m.failure("insert"); err != nil {
		return internal.Item{}, err
	}
	return m.MemoryStore.Insert(ctx, name, description)
}

// UpdateFields 實作 internal.Store
func (m *MockStore) UpdateFields(ctx context.Context, id int64, name, description string) (internal.Item, error) {
	m.UpdateCalls.Add(1)
	if err := m.failure("update"); err != nil {
		return internal.Item{}, err
	}
	return m.MemoryStore.UpdateFields(ctx, id, name, description)
}

// DeleteByID 實作 internal.Store
func (m *MockStore) DeleteByID(ctx context.Context, id int64) error {
	m.DeleteCalls.Add(1)
	if err := m.failure("delete"); err != nil {
		return err
	}
	return m.MemoryStore.DeleteByID(ctx, id)
}

// Seed 直接寫入項目（測試用，不計入呼叫次數）
func (m *MockStore) Seed(name, description string) internal.Item {
	item, err := m.MemoryStore.Insert(context.Background(), name, description)
	if err != nil {
		panic(err)
	}
	return item
}

// ResetCalls 清空呼叫計數
func (m *MockStore) ResetCalls() {
	m.GetCalls.Store(0)
	m.ListCalls.Store(0)
	m.InsertCalls.Store(0)
	m.UpdateCalls.Store(0)
	m.DeleteCalls.Store(0)
}

// MockCache 包裝內存快取，記錄操作並支援錯誤注入
type MockCache struct {
	*storage.MemoryCache

	GetCalls    atomic.Int32
	SetCalls    atomic.Int32
	DeleteCalls atomic.Int32

	// 錯誤注入
	FailGet    atomic.Bool
	FailSet    atomic.Bool
	FailDelete atomic.Bool

	mu  sync.Mutex
	ops []string
}

// NewMockCache 創建新的 MockCache
func NewMockCache() *MockCache {
	return &MockCache{MemoryCache: storage.NewMemoryCache()}
}

func (m *MockCache) record(op, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, fmt.Sprintf("%s %s", op, key))
}

// Get 實作 internal.Cache
func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.GetCalls.Add(1)
	m.record("get", key)
	if m.FailGet.Load() {
		return nil, ErrInjected
	}
	return m.MemoryCache.Get(ctx, key)
}

// Set 實作 internal.Cache
func (m *MockCache) Set(ctx context.Context, key string, value []byte) error {
	m.SetCalls.Add(1)
	m.record("set", key)
	if m.FailSet.Load() {
		return ErrInjected
	}
	return m.MemoryCache.Set(ctx, key, value)
}

// Delete 實作 internal.Cache
func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.DeleteCalls.Add(1)
	m.record("delete", key)
	if m.FailDelete.Load() {
		return ErrInjected
	}
	return m.MemoryCache.Delete(ctx, key)
}

// FailAll 開啟或關閉所有操作的錯誤注入
func (m *MockCache) FailAll(fail bool) {
	m.FailGet.Store(fail)
	m.FailSet.Store(fail)
	m.FailDelete.Store(fail)
}

// Put 直接寫入快取（測試用，不記錄）
func (m *MockCache) Put(key string, value []byte) {
	_ = m.MemoryCache.Set(context.Background(), key, value)
}

// Value 直接讀取快取（測試用，不記錄）
func (m *MockCache) Value(key string) ([]byte, bool) {
	v, err := m.MemoryCache.Get(context.Background(), key)
	return v, err == nil
}

// Ops 回傳已記錄的操作
func (m *MockCache) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.ops))
	copy(out, m.ops)
	return out
}

// ResetOps 清空操作紀錄與計數
func (m *MockCache) ResetOps() {
	m.mu.Lock()
	m.ops = nil
	m.mu.Unlock()

	m.GetCalls.Store(0)
	m.SetCalls.Store(0)
	m.DeleteCalls.Store(0)
}
