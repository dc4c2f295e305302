package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koopa0/system-design/item-cache/internal"
	"github.com/koopa0/system-design/item-cache/internal/migrations"
	"github.com/koopa0/system-design/item-cache/internal/storage"
	"github.com/koopa0/system-design/item-cache/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 載入配置
	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 設定日誌
	log, err := logger.Init(config.Log.Level, config.Log.Format, config.Log.Output, config.Log.AddSource)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(config, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// closer 依建立的反序關閉資源
type closer []func()

func (c closer) close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func run(config *internal.Config, log *slog.Logger) error {
	ctx := context.Background()

	var cleanup closer
	defer cleanup.close()

	store, storeCheck, err := openStore(ctx, config, log, &cleanup)
	if err != nil {
		return err
	}

	cache, cacheCheck, err := openCache(ctx, config, log, &cleanup)
	if err != nil {
		return err
	}

	items := internal.NewItemCache(store, cache, config, log)
	// 反序關閉：先等待非同步回填，再關閉快取與資料庫連線
	cleanup = append(cleanup, items.Shutdown)
	handler := internal.NewHandler(items, log, storeCheck, cacheCheck)

	// 設定 HTTP 伺服器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting server",
			"port", config.Server.Port,
			"store", config.Store.Driver,
			"cache", config.Cache.Driver)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("failed to shutdown server", "error", err)
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("failed to force close server", "error", closeErr)
			}
		}
	}

	return nil
}

// openStore 依配置建立資料庫後端
func openStore(ctx context.Context, config *internal.Config, log *slog.Logger, cleanup *closer) (internal.Store, internal.ReadinessCheck, error) {
	switch config.Store.Driver {
	case internal.DriverPostgres:
		dsn := config.PostgresDSN()

		if err := migrations.Run(dsn, log); err != nil {
			return nil, internal.ReadinessCheck{}, fmt.Errorf("run migrations: %w", err)
		}

		pgConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, internal.ReadinessCheck{}, fmt.Errorf("parse postgres config: %w", err)
		}
		pgConfig.MaxConns = config.Postgres.MaxConns
		pgConfig.MinConns = config.Postgres.MinConns

		pool, err := pgxpool.NewWithConfig(ctx, pgConfig)
		if err != nil {
			return nil, internal.ReadinessCheck{}, fmt.Errorf("connect postgres: %w", err)
		}
		*cleanup = append(*cleanup, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			return nil, internal.ReadinessCheck{}, fmt.Errorf("ping postgres: %w", err)
		}

		store := storage.NewPostgres(pool)
		return store, internal.ReadinessCheck{Name: "postgres", Ping: store.Ping}, nil

	case internal.DriverSQLite:
		store, err := storage.OpenSQLite(ctx, config.Store.SQLitePath)
		if err != nil {
			return nil, internal.ReadinessCheck{}, err
		}
		*cleanup = append(*cleanup, func() {
			if err := store.Close(); err != nil {
				log.Error("failed to close sqlite", "error", err)
			}
		})
		return store, internal.ReadinessCheck{Name: "sqlite", Ping: store.Ping}, nil

	default:
		log.Warn("using in-memory store, data will not survive restarts")
		store := storage.NewMemoryStore()
		return store, internal.ReadinessCheck{Name: "memory_store", Ping: store.Ping}, nil
	}
}

// openCache 依配置建立快取後端
func openCache(ctx context.Context, config *internal.Config, log *slog.Logger, cleanup *closer) (internal.Cache, internal.ReadinessCheck, error) {
	switch config.Cache.Driver {
	case internal.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         config.Redis.Addr,
			Password:     config.Redis.Password,
			DB:           config.Redis.DB,
			PoolSize:     config.Redis.PoolSize,
			MinIdleConns: config.Redis.MinIdleConns,
			MaxRetries:   config.Redis.MaxRetries,
			ReadTimeout:  config.Redis.ReadTimeout,
			WriteTimeout: config.Redis.WriteTimeout,
		})
		*cleanup = append(*cleanup, func() { _ = client.Close() })

		cache := storage.NewRedis(client)
		// 快取不可用時仍可啟動，讀取會直接走資料庫
		if err := cache.Ping(ctx); err != nil {
			log.Warn("redis unreachable at startup", "addr", config.Redis.Addr, "error", err)
		}
		return cache, internal.ReadinessCheck{Name: "redis", Ping: cache.Ping}, nil

	case internal.DriverMemcached:
		client := memcache.New(config.Memcached.Servers...)
		client.Timeout = config.Memcached.Timeout
		client.MaxIdleConns = config.Memcached.MaxIdleConns

		cache := storage.NewMemcache(client)
		if err := cache.Ping(ctx); err != nil {
			log.Warn("memcached unreachable at startup", "servers", config.Memcached.Servers, "error", err)
		}
		return cache, internal.ReadinessCheck{Name: "memcached", Ping: cache.Ping}, nil

	default:
		cache := storage.NewMemoryCache()
		return cache, internal.ReadinessCheck{Name: "memory_cache", Ping: cache.Ping}, nil
	}
}
