package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"db"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Log         LogConfig      `mapstructure:"log"`
	Sync        SyncConfig     `mapstructure:"sync"`
	Source      EndpointConfig `mapstructure:"source"`
	Destination EndpointConfig `mapstructure:"destination"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int   `mapstructure:"port"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	// 触发类接口（清空/同步）每个窗口允许的请求数
	TriggerRateLimit  int           `mapstructure:"trigger_rate_limit"`
	TriggerRateWindow time.Duration `mapstructure:"trigger_rate_window"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 服务间 JWT 认证配置
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SyncConfig 排班同步与批量清空的边界参数
type SyncConfig struct {
	MaxAttempts        int           `mapstructure:"max_attempts"`       // 清空编排最大迭代次数
	BatchSize          int           `mapstructure:"batch_size"`         // 单次迭代拉取的默认班次数
	MaxBatchSize       int           `mapstructure:"max_batch_size"`     // 请求可指定的 batch_size 上限
	DeleteConcurrency  int           `mapstructure:"delete_concurrency"` // 单次迭代并发删除数
	WriteConcurrency   int           `mapstructure:"write_concurrency"`  // 同步周期并发写入（创建/更新/删除）数
	MaxDeltaCount      int           `mapstructure:"max_delta_count"`    // 单个同步周期最多应用的变更数
	MaxContinuations   int           `mapstructure:"max_continuations"`  // 单周最多跟随的续传次数
	LeaseTTL           time.Duration `mapstructure:"lease_ttl"`
	SupervisorInterval time.Duration `mapstructure:"supervisor_interval"`
	PastWeeks          int           `mapstructure:"past_weeks"`
	FutureWeeks        int           `mapstructure:"future_weeks"`
	SnapshotCacheTTL   time.Duration `mapstructure:"snapshot_cache_ttl"`
}

// EndpointConfig 外部排班系统（WFM 源 / 目标排班服务）连接配置
type EndpointConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > .env > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 不存在时忽略，仅用于本地开发
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.trigger_rate_limit", 30)
	v.SetDefault("server.trigger_rate_window", "1m")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "shifts_connector")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.issuer", "shifts-connector")
	v.SetDefault("auth.token_ttl", "1h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sync.max_attempts", 20)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.max_batch_size", 500)
	v.SetDefault("sync.delete_concurrency", 8)
	v.SetDefault("sync.write_concurrency", 8)
	v.SetDefault("sync.max_delta_count", 100)
	v.SetDefault("sync.max_continuations", 10)
	v.SetDefault("sync.lease_ttl", "10m")
	v.SetDefault("sync.supervisor_interval", "1m")
	v.SetDefault("sync.past_weeks", 3)
	v.SetDefault("sync.future_weeks", 3)
	v.SetDefault("sync.snapshot_cache_ttl", "30m")

	v.SetDefault("source.timeout", "30s")
	v.SetDefault("destination.timeout", "30s")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("SHIFTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("配置校验失败: sync.max_attempts 必须 >= 1")
	}
	if c.Sync.BatchSize < 1 || c.Sync.BatchSize > c.Sync.MaxBatchSize {
		return fmt.Errorf("配置校验失败: sync.batch_size 必须在 1-%d 之间", c.Sync.MaxBatchSize)
	}
	if c.Sync.DeleteConcurrency < 1 {
		return fmt.Errorf("配置校验失败: sync.delete_concurrency 必须 >= 1")
	}
	if c.Sync.WriteConcurrency < 1 {
		return fmt.Errorf("配置校验失败: sync.write_concurrency 必须 >= 1")
	}
	if c.Sync.MaxDeltaCount < 1 {
		return fmt.Errorf("配置校验失败: sync.max_delta_count 必须 >= 1")
	}
	if c.Sync.LeaseTTL < 10*time.Second {
		return fmt.Errorf("配置校验失败: sync.lease_ttl 不能小于 10s")
	}
	return nil
}
