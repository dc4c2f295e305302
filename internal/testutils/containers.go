// Package testutils 提供測試用的共用工具和輔助函數
//
// 包括：
//   - 記錄呼叫並可注入錯誤的 Store / Cache mock
//   - HTTP 請求與 JSON 解析輔助
//   - Redis、PostgreSQL、memcached 測試容器（testcontainers）
//
// 容器測試在 -short 模式下會被跳過。
package testutils

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koopa0/system-design/item-cache/internal/migrations"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestEnvironment 封裝測試環境
type TestEnvironment struct {
	RedisClient     *redis.Client
	PostgresPool    *pgxpool.Pool
	MemcachedClient *memcache.Client
	RedisContainer  tc.Container
	PgContainer     tc.Container
	McContainer     tc.Container
	RedisAddr       string
	PostgresDSN     string
	MemcachedAddr   string
	Logger          *slog.Logger
	ctx             context.Context
}

// SetupTestEnvironment 設置完整的測試環境
//
// 這個函數會：
//  1. 啟動 Redis 容器
//  2. 啟動 PostgreSQL 容器並執行遷移
//  3. 註冊清理函數
//
// 使用範例：
//
//	func TestSomething(t *testing.T) {
//	    env := testutils.SetupTestEnvironment(t)
//	    // 使用 env.RedisClient 和 env.PostgresPool
//	}
func SetupTestEnvironment(t testing.TB) *TestEnvironment {
	t.Helper()

	env := newEnvironment(t)
	env.setupRedis(t)
	env.setupPostgreSQL(t)

	return env
}

// SetupRedis 只啟動 Redis 容器
func SetupRedis(t testing.TB) *TestEnvironment {
	t.Helper()

	env := newEnvironment(t)
	env.setupRedis(t)

	return env
}

// SetupPostgres 只啟動 PostgreSQL 容器
func SetupPostgres(t testing.TB) *TestEnvironment {
	t.Helper()

	env := newEnvironment(t)
	env.setupPostgreSQL(t)

	return env
}

// SetupMemcached 只啟動 memcached 容器
func SetupMemcached(t testing.TB) *TestEnvironment {
	t.Helper()

	env := newEnvironment(t)
	env.setupMemcached(t)

	return env
}

func newEnvironment(t testing.TB) *TestEnvironment {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	env := &TestEnvironment{
		ctx:    context.Background(),
		Logger: NewTestLogger(),
	}
	t.Cleanup(env.Cleanup)

	return env
}

// setupRedis 啟動 Redis 測試容器
func (env *TestEnvironment) setupRedis(t testing.TB) {
	t.Helper()

	ctx := env.ctx

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	env.RedisContainer = redisContainer

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	env.RedisAddr = endpoint

	env.RedisClient = redis.NewClient(&redis.Options{
		Addr:         endpoint,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := env.RedisClient.Ping(pingCtx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
}

// setupPostgreSQL 啟動 PostgreSQL 測試容器並執行遷移
func (env *TestEnvironment) setupPostgreSQL(t testing.TB) {
	t.Helper()

	ctx := env.ctx

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	env.PgContainer = pgContainer

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	env.PostgresDSN = dsn

	if err := migrations.Run(dsn, env.Logger); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse postgres config: %v", err)
	}
	config.MaxConns = 10
	config.MinConns = 2

	env.PostgresPool, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}

	if err := env.PostgresPool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
}

// setupMemcached 以通用容器啟動 memcached
func (env *TestEnvironment) setupMemcached(t testing.TB) {
	t.Helper()

	ctx := env.ctx

	mcContainer, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "memcached:1.6-alpine",
			ExposedPorts: []string{"11211/tcp"},
			WaitingFor:   wait.ForListeningPort("11211/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start memcached container: %v", err)
	}
	env.McContainer = mcContainer

	endpoint, err := mcContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get memcached endpoint: %v", err)
	}
	env.MemcachedAddr = endpoint

	env.MemcachedClient = memcache.New(endpoint)
	env.MemcachedClient.Timeout = time.Second

	if err := env.MemcachedClient.Ping(); err != nil {
		t.Fatalf("failed to ping memcached: %v", err)
	}
}

// Cleanup 清理測試環境
func (env *TestEnvironment) Cleanup() {
	ctx := context.Background()

	if env.RedisClient != nil {
		_ = env.RedisClient.Close()
		env.RedisClient = nil
	}

	if env.PostgresPool != nil {
		env.PostgresPool.Close()
		env.PostgresPool = nil
	}

	// gomemcache 的連線在容器終止時一併失效
	env.MemcachedClient = nil

	if env.RedisContainer != nil {
		_ = env.RedisContainer.Terminate(ctx)
		env.RedisContainer = nil
	}

	if env.PgContainer != nil {
		_ = env.PgContainer.Terminate(ctx)
		env.PgContainer = nil
	}

	if env.McContainer != nil {
		_ = env.McContainer.Terminate(ctx)
		env.McContainer = nil
	}
}

// ResetTestData 清空 Redis 與 items 表
func (env *TestEnvironment) ResetTestData(t testing.TB) {
	t.Helper()

	ctx := context.Background()

	if env.RedisClient != nil {
		if err := env.RedisClient.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("failed to flush redis: %v", err)
		}
	}

	if env.MemcachedClient != nil {
		if err := env.MemcachedClient.FlushAll(); err != nil {
			t.Fatalf("failed to flush memcached: %v", err)
		}
	}

	if env.PostgresPool != nil {
		if _, err := env.PostgresPool.Exec(ctx, "TRUNCATE TABLE items RESTART IDENTITY"); err != nil {
			t.Fatalf("failed to truncate items: %v", err)
		}
	}
}
