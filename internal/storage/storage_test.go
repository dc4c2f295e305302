package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/koopa0/system-design/item-cache/internal"
	apperrors "github.com/koopa0/system-design/item-cache/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore 所有 Store 實現共用的行為測試
//
// newStore 每次都需回傳空的存儲，ID 從 1 開始。
func testStore(t *testing.T, newStore func(t *testing.T) internal.Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetByID(ctx, 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("insert assigns increasing ids", func(t *testing.T) {
		store := newStore(t)

		a, err := store.Insert(ctx, "a", "first")
		require.NoError(t, err)
		b, err := store.Insert(ctx, "b", "second")
		require.NoError(t, err)

		assert.Equal(t, internal.Item{ID: 1, Name: "a", Description: "first"}, a)
		assert.Equal(t, internal.Item{ID: 2, Name: "b", Description: "second"}, b)

		got, err := store.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})

	t.Run("empty strings round-trip", func(t *testing.T) {
		store := newStore(t)

		item, err := store.Insert(ctx, "", "")
		require.NoError(t, err)

		got, err := store.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "", got.Name)
		assert.Equal(t, "", got.Description)
	})

	t.Run("list ordered by id", func(t *testing.T) {
		store := newStore(t)

		items, err := store.ListAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)

		for _, name := range []string{"c", "a", "b"} {
			_, err := store.Insert(ctx, name, name)
			require.NoError(t, err)
		}

		items, err = store.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, items, 3)
		for i, item := range items {
			assert.Equal(t, int64(i+1), item.ID)
		}
		assert.Equal(t, "c", items[0].Name)
	})

	t.Run("update", func(t *testing.T) {
		store := newStore(t)

		item, err := store.Insert(ctx, "old", "old")
		require.NoError(t, err)

		updated, err := store.UpdateFields(ctx, item.ID, "new", "desc")
		require.NoError(t, err)
		assert.Equal(t, internal.Item{ID: item.ID, Name: "new", Description: "desc"}, updated)

		got, err := store.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)

		_, err = store.UpdateFields(ctx, 999, "x", "y")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)

		item, err := store.Insert(ctx, "doomed", "x")
		require.NoError(t, err)

		require.NoError(t, store.DeleteByID(ctx, item.ID))

		_, err = store.GetByID(ctx, item.ID)
		assert.True(t, apperrors.IsNotFound(err))

		err = store.DeleteByID(ctx, item.ID)
		assert.True(t, apperrors.IsNotFound(err))

		// ID 不重複使用
		next, err := store.Insert(ctx, "next", "y")
		require.NoError(t, err)
		assert.Greater(t, next.ID, item.ID)
	})
}

// testCache 所有 Cache 實現共用的行為測試
func testCache(t *testing.T, cache internal.Cache) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, err := cache.Get(ctx, "item:404")
		assert.True(t, errors.Is(err, internal.ErrCacheMiss))
	})

	t.Run("set get overwrite", func(t *testing.T) {
		key := internal.ItemKey(1)

		require.NoError(t, cache.Set(ctx, key, []byte(`{"id":1}`)))
		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":1}`), got)

		require.NoError(t, cache.Set(ctx, key, []byte(`{"id":1,"name":"x"}`)))
		got, err = cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":1,"name":"x"}`), got)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, internal.AllItemsKey, []byte(`[]`)))

		require.NoError(t, cache.Delete(ctx, internal.AllItemsKey))
		_, err := cache.Get(ctx, internal.AllItemsKey)
		assert.True(t, errors.Is(err, internal.ErrCacheMiss))

		require.NoError(t, cache.Delete(ctx, internal.AllItemsKey))
	})
}
