// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Camunda  CamundaConfig  `mapstructure:"camunda"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds settings for the public HTTP API.
type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// Upstream sources for the catalog.
const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// UpstreamConfig describes where collections, plans and the auth check come from.
type UpstreamConfig struct {
	Source          string `mapstructure:"source"`
	BaseURL         string `mapstructure:"base_url"`
	CollectionsPath string `mapstructure:"collections_path"`
	PlansPath       string `mapstructure:"plans_path"`
	AuthCheckPath   string `mapstructure:"auth_check_path"`
	Timeout         int    `mapstructure:"timeout"`        // milliseconds
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"` // per response
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	ConnMaxLife    int    `mapstructure:"conn_max_lifetime"` // milliseconds
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"` // milliseconds
}

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// SessionConfig controls the session collaborator.
type SessionConfig struct {
	Store      string `mapstructure:"store"`
	CookieName string `mapstructure:"cookie_name"`
	TTL        int    `mapstructure:"ttl"` // milliseconds
	KeyPrefix  string `mapstructure:"key_prefix"`
	Secure     bool   `mapstructure:"secure_cookie"`
}

// CacheConfig controls the read-through plan cache.
type CacheConfig struct {
	PlansEnabled bool   `mapstructure:"plans_enabled"`
	PlansTTL     int    `mapstructure:"plans_ttl"` // milliseconds
	PlansKey     string `mapstructure:"plans_key"`
}

type CamundaConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BrokerAddress string `mapstructure:"broker_address"`
	MaxJobsActive int    `mapstructure:"max_jobs_active"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
	MaxRetries    int    `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
