package testutils

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koopa0/system-design/item-cache/internal"
	"github.com/stretchr/testify/require"
)

// DefaultTestConfig 返回測試用的預設配置
func DefaultTestConfig() *internal.Config {
	cfg := internal.DefaultConfig()

	cfg.Store.Driver = internal.DriverMemory
	cfg.Cache.Driver = internal.DriverMemory
	cfg.Cache.AsyncPopulate = false
	cfg.Cache.OpTimeout = time.Second

	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	return cfg
}

// NewTestLogger 建立只輸出警告以上的日誌記錄器，減少測試噪音
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// ItemCacheFixture 協調器與其 mock 依賴
type ItemCacheFixture struct {
	Items  *internal.ItemCache
	Store  *MockStore
	Cache  *MockCache
	Config *internal.Config
}

// SetupItemCache 以 mock 依賴建立協調器
func SetupItemCache(t testing.TB, opts ...internal.Option) *ItemCacheFixture {
	t.Helper()

	cfg := DefaultTestConfig()
	store := NewMockStore()
	cache := NewMockCache()
	items := internal.NewItemCache(store, cache, cfg, NewTestLogger(), opts...)
	t.Cleanup(items.Shutdown)

	return &ItemCacheFixture{
		Items:  items,
		Store:  store,
		Cache:  cache,
		Config: cfg,
	}
}

// Routes 回傳綁定此協調器的 HTTP 路由
func (f *ItemCacheFixture) Routes(checks ...internal.ReadinessCheck) http.Handler {
	return internal.NewHandler(f.Items, NewTestLogger(), checks...).Routes()
}

// MakeHTTPRequest 執行 HTTP 請求的輔助函數
func MakeHTTPRequest(t testing.TB, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		if str, ok := body.(string); ok {
			bodyReader = strings.NewReader(str)
		} else {
			jsonBytes, err := json.Marshal(body)
			require.NoError(t, err)
			bodyReader = strings.NewReader(string(jsonBytes))
		}
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	return recorder
}

// ParseJSONResponse 解析 JSON 響應
func ParseJSONResponse(t testing.TB, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()

	err := json.NewDecoder(recorder.Body).Decode(target)
	require.NoError(t, err, "failed to parse JSON response")
}

// WaitForCondition 等待條件滿足
func WaitForCondition(t testing.TB, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("timeout waiting for condition: %s", message)
		case <-ticker.C:
		}
	}
}

// RunConcurrently 並發執行測試函數
func RunConcurrently(t testing.TB, concurrency int, iterations int, fn func(workerID, iteration int)) {
	t.Helper()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				fn(workerID, j)
			}
		}(i)
	}
	wg.Wait()
}

// DecodeCachedItem 讀取並解析快取中的單一項目
func DecodeCachedItem(t testing.TB, cache *MockCache, id int64) (internal.Item, bool) {
	t.Helper()

	data, ok := cache.Value(internal.ItemKey(id))
	if !ok {
		return internal.Item{}, false
	}
	item, err := internal.DecodeItem(data)
	require.NoError(t, err)
	return item, true
}
