package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the ruz-auth service.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Logger    LoggerConfig    `mapstructure:"logger" validate:"required"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis" validate:"required"`
	OTP       OTPConfig       `mapstructure:"otp" validate:"required"`
	Registry  RegistryConfig  `mapstructure:"registry" validate:"required"`
	Decode    DecodeConfig    `mapstructure:"decode" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"oneof=text json"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables rotating file output next to stdout.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

type DatabaseConfig struct {
	Host              string        `mapstructure:"host" validate:"required"`
	Port              string        `mapstructure:"port" validate:"required"`
	User              string        `mapstructure:"user" validate:"required"`
	Password          string        `mapstructure:"password"`
	Name              string        `mapstructure:"name" validate:"required"`
	SSLMode           string        `mapstructure:"sslmode"`
	MaxOpenConns      int           `mapstructure:"max_open_conns" validate:"gte=1"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsEnabled bool          `mapstructure:"migrations_enabled"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"gte=0"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// OTPConfig points at the Telnyx Verify API.
type OTPConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	APIKey          string        `mapstructure:"api_key"`
	VerifyProfileID string        `mapstructure:"verify_profile_id"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// RegistryConfig points at the RegisterUZ public API.
type RegistryConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	ChangedSince string        `mapstructure:"changed_since" validate:"required"`
}

type DecodeConfig struct {
	Backend     string        `mapstructure:"backend" validate:"oneof=memory redis"`
	TTL         time.Duration `mapstructure:"ttl" validate:"gt=0"`
	NegativeTTL time.Duration `mapstructure:"negative_ttl" validate:"gte=0"`
}

type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Global          RateLimitRule `mapstructure:"global"`
	OTP             RateLimitRule `mapstructure:"otp"`
	Whitelist       []string      `mapstructure:"whitelist"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitRule is a limit per window, e.g. 5 per "1m".
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

type JobsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ImportCron  string `mapstructure:"import_cron" validate:"required_if=Enabled true"`
	Concurrency int    `mapstructure:"concurrency"`
}

// AuthConfig signs the access tokens issued on login. The API refuses to start without a
// secret; tools that never issue tokens may leave it empty.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	AccessTTL time.Duration `mapstructure:"access_ttl" validate:"gt=0"`
	Issuer    string        `mapstructure:"issuer" validate:"required"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DSN returns the PostgreSQL connection string based on config values.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
