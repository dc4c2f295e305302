package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// 後端驅動名稱
const (
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverRedis     = "redis"
	DriverMemcached = "memcached"
	DriverMemory    = "memory"
)

const (
	defaultCacheOpTimeout = 2 * time.Second
	defaultRedisPort      = "6379"
)

// Config 整個應用的配置
//
// 讀取順序：預設值 -> YAML 檔案 -> 環境變數。
type Config struct {
	Server struct {
		Port            int           `yaml:"port" env:"SERVER_PORT"`
		ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`

	Store struct {
		Driver     string `yaml:"driver" env:"STORE_DRIVER"` // postgres, sqlite, memory
		SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	} `yaml:"store"`

	Postgres struct {
		URL      string `yaml:"url" env:"DATABASE_URL"`
		Host     string `yaml:"host" env:"POSTGRES_HOST"`
		Port     int    `yaml:"port" env:"POSTGRES_PORT"`
		User     string `yaml:"user" env:"POSTGRES_USER"`
		Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
		DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
		MaxConns int32  `yaml:"max_conns" env:"POSTGRES_MAX_CONNS"`
		MinConns int32  `yaml:"min_conns" env:"POSTGRES_MIN_CONNS"`
	} `yaml:"postgres"`

	Cache struct {
		Driver        string        `yaml:"driver" env:"CACHE_DRIVER"` // redis, memcached, memory
		AsyncPopulate bool          `yaml:"async_populate" env:"CACHE_ASYNC_POPULATE"`
		OpTimeout     time.Duration `yaml:"op_timeout" env:"CACHE_OP_TIMEOUT"`
	} `yaml:"cache"`

	Redis struct {
		Addr         string        `yaml:"addr" env:"REDIS_ADDR"`
		// Host 舊部署使用的 REDIS_HOST，僅在未設定 REDIS_ADDR 時以預設埠組成 Addr
		Host         string        `yaml:"-" env:"REDIS_HOST"`
		Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
		DB           int           `yaml:"db" env:"REDIS_DB"`
		PoolSize     int           `yaml:"pool_size" env:"REDIS_POOL_SIZE"`
		MinIdleConns int           `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS"`
		MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES"`
		ReadTimeout  time.Duration `yaml:"read_timeout" env:"REDIS_READ_TIMEOUT"`
		WriteTimeout time.Duration `yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT"`
	} `yaml:"redis"`

	Memcached struct {
		Servers      []string      `yaml:"servers" env:"MEMCACHED_SERVERS" envSeparator:","`
		Timeout      time.Duration `yaml:"timeout" env:"MEMCACHED_TIMEOUT"`
		MaxIdleConns int           `yaml:"max_idle_conns" env:"MEMCACHED_MAX_IDLE_CONNS"`
	} `yaml:"memcached"`

	Log struct {
		Level     string `yaml:"level" env:"LOG_LEVEL"`
		Format    string `yaml:"format" env:"LOG_FORMAT"`
		Output    string `yaml:"output" env:"LOG_OUTPUT"`
		AddSource bool   `yaml:"add_source" env:"LOG_ADD_SOURCE"`
	} `yaml:"log"`
}

// DefaultConfig 回傳預設配置
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Store.Driver = DriverPostgres
	cfg.Store.SQLitePath = "items.db"

	cfg.Postgres.Host = "localhost"
	cfg.Postgres.Port = 5432
	cfg.Postgres.User = "user"
	cfg.Postgres.Password = "password"
	cfg.Postgres.DBName = "mydb"
	cfg.Postgres.MaxConns = 10
	cfg.Postgres.MinConns = 2

	cfg.Cache.Driver = DriverRedis
	cfg.Cache.OpTimeout = defaultCacheOpTimeout

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.PoolSize = 10
	cfg.Redis.MinIdleConns = 2
	cfg.Redis.MaxRetries = 3
	cfg.Redis.ReadTimeout = 3 * time.Second
	cfg.Redis.WriteTimeout = 3 * time.Second

	cfg.Memcached.Servers = []string{"localhost:11211"}
	cfg.Memcached.Timeout = 500 * time.Millisecond
	cfg.Memcached.MaxIdleConns = 4

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.Output = "stdout"

	return cfg
}

// LoadConfig 載入配置檔案並套用環境變數覆蓋
//
// 檔案不存在時只使用預設值與環境變數。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 - path 來自啟動參數，非使用者輸入
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyRedisHost()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyRedisHost 以 REDIS_HOST 組成 Redis 位址，REDIS_ADDR 優先
func (c *Config) applyRedisHost() {
	if c.Redis.Host == "" {
		return
	}
	if _, ok := os.LookupEnv("REDIS_ADDR"); ok {
		return
	}
	c.Redis.Addr = net.JoinHostPort(c.Redis.Host, defaultRedisPort)
}

// Validate 檢查配置
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Cache.Driver {
	case DriverRedis, DriverMemcached, DriverMemory:
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}

	if c.Store.Driver == DriverSQLite && c.Store.SQLitePath == "" {
		return errors.New("store.sqlite_path is required for sqlite driver")
	}
	if c.Cache.Driver == DriverMemcached && len(c.Memcached.Servers) == 0 {
		return errors.New("memcached.servers is required for memcached driver")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	return nil
}

// PostgresDSN 生成 PostgreSQL 連線字串
func (c *Config) PostgresDSN() string {
	if c.Postgres.URL != "" {
		return c.Postgres.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     net.JoinHostPort(c.Postgres.Host, strconv.Itoa(c.Postgres.Port)),
		Path:     "/" + c.Postgres.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
