package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Item 項目記錄，由 Store 持有正本
type Item struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Source 標示讀取結果的來源
type Source string

const (
	// SourceCache 結果來自快取
	SourceCache Source = "cache"

	// SourceStore 結果來自資料庫
	SourceStore Source = "store"
)

// AllItemsKey 整份清單的快取鍵
const AllItemsKey = "items:all"

// ItemKey 單一項目的快取鍵
func ItemKey(id int64) string {
	return "item:" + strconv.FormatInt(id, 10)
}

// ErrCacheMiss 快取中沒有該鍵，不是錯誤狀態
var ErrCacheMiss = errors.New("cache miss")

// Store 持久化存儲
//
// 找不到記錄時回傳 errors.ErrItemNotFound。
type Store interface {
	GetByID(ctx context.Context, id int64) (Item, error)
	// ListAll 依 id 遞增回傳所有項目
	ListAll(ctx context.Context) ([]Item, error)
	Insert(ctx context.Context, name, description string) (Item, error)
	UpdateFields(ctx context.Context, id int64, name, description string) (Item, error)
	DeleteByID(ctx context.Context, id int64) error
}

// Cache 鍵值快取層
//
// Get 未命中時回傳 ErrCacheMiss；Delete 不存在的鍵不算錯誤。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// EncodeItem 序列化單一項目
func EncodeItem(item Item) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode item %d: %w", item.ID, err)
	}
	return data, nil
}

// DecodeItem 反序列化單一項目
func DecodeItem(data []byte) (Item, error) {
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return Item{}, fmt.Errorf("decode item: %w", err)
	}
	return item, nil
}

// EncodeItems 序列化整份清單，空清單編碼為 []
func EncodeItems(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return data, nil
}

// DecodeItems 反序列化整份清單
func DecodeItems(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}
