package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Engagement  EngagementConfig  `mapstructure:"engagement"`
	Consistency ConsistencyConfig `mapstructure:"consistency"`
	Log         LogConfig         `mapstructure:"log"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"` // postgres | sqlite
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_lifetime"`
	LogQueries   bool          `mapstructure:"log_queries"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type EngagementConfig struct {
	// Timezone decides which calendar date a like falls on.
	Timezone string `mapstructure:"timezone"`
}

type ConsistencyConfig struct {
	MaxRetries        uint          `mapstructure:"max_retries"`
	ReplicatorWorkers int           `mapstructure:"replicator_workers"`
	ReplicatorQueue   int           `mapstructure:"replicator_queue"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ClaimLimit        int           `mapstructure:"claim_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:ideagraph.db?_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("auth.issuer", "ideagraph-auth")

	v.SetDefault("engagement.timezone", "UTC")

	v.SetDefault("consistency.max_retries", 3)
	v.SetDefault("consistency.replicator_workers", 4)
	v.SetDefault("consistency.replicator_queue", 10000)
	v.SetDefault("consistency.reconcile_interval", time.Minute)
	v.SetDefault("consistency.claim_limit", 128)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.service_name", "ideagraph")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load 读取配置：config.yaml（可选）+ .env + IDEAGRAPH_ 前缀环境变量
func Load() (*Config, error) {
	// .env 不存在时忽略（生产环境直接用环境变量）
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("IDEAGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if _, err := time.LoadLocation(c.Engagement.Timezone); err != nil {
		return fmt.Errorf("invalid engagement.timezone: %w", err)
	}
	if c.Consistency.MaxRetries == 0 {
		return errors.New("consistency.max_retries must be > 0")
	}
	return nil
}

// Location returns the engagement calendar location.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engagement.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
