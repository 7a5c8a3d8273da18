// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MinSecretLength is the shortest JWT_SECRET accepted at startup.
const MinSecretLength = 32

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; durations are parsed with ParseTTL so values such
// as "15m" and "7d" are accepted.
type Config struct {
	Env      string // application environment (development, test, production)
	Host     string // interface to bind
	Port     string // HTTP port to listen on
	LogLevel string // logrus level name
	Version  string // reported by /health

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret         string        // HMAC secret shared by every token
	AccessTTL         time.Duration // access token lifetime
	RefreshTTL        time.Duration // refresh token and session lifetime
	ResetTokenTTL     time.Duration // password reset token lifetime
	BcryptCost        int           // bcrypt work factor
	BcryptConcurrency int           // max concurrent bcrypt operations

	AMQPURL      string // broker URL for audit events; empty disables publishing
	AuditQueue   string // queue carrying audit events
	AuditLogPath string // file the audit consumer appends to

	HousekeepingSchedule string // cron spec for purging expired reset tokens

	Redis RedisConfig
	Cache CacheConfig
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool { return c.Env == "production" }

// Addr is the listen address built from Host and Port.
func (c Config) Addr() string { return c.Host + ":" + c.Port }

// Load reads a local .env file when present and then resolves every setting
// from the process environment.  All validation problems are reported
// together.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_HOST", "0.0.0.0")
	v.SetDefault("APP_PORT", "3000")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("JWT_ACCESS_EXPIRES_IN", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRES_IN", "7d")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("BCRYPT_ROUNDS", 10)
	v.SetDefault("BCRYPT_CONCURRENCY", runtime.NumCPU())
	v.SetDefault("AUDIT_QUEUE", "auth.audit")
	v.SetDefault("AUDIT_LOG_PATH", "logs/audit.log")
	v.SetDefault("HOUSEKEEPING_SCHEDULE", "@every 1h")
	setRedisDefaults(v)
	setCacheDefaults(v)
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	var errs []error

	required := func(key string) string {
		s := strings.TrimSpace(v.GetString(key))
		if s == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return s
	}
	ttl := func(key string) time.Duration {
		d, err := ParseTTL(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	cfg := Config{
		Env:      strings.ToLower(v.GetString("APP_ENV")),
		Host:     v.GetString("APP_HOST"),
		Port:     v.GetString("APP_PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Version:  v.GetString("APP_VERSION"),

		DBUser: required("DB_USER"),
		DBPass: v.GetString("DB_PASS"),
		DBHost: required("DB_HOST"),
		DBPort: v.GetString("DB_PORT"),
		DBName: required("DB_NAME"),

		JWTSecret:         required("JWT_SECRET"),
		AccessTTL:         ttl("JWT_ACCESS_EXPIRES_IN"),
		RefreshTTL:        ttl("JWT_REFRESH_EXPIRES_IN"),
		ResetTokenTTL:     ttl("RESET_TOKEN_TTL"),
		BcryptCost:        v.GetInt("BCRYPT_ROUNDS"),
		BcryptConcurrency: v.GetInt("BCRYPT_CONCURRENCY"),

		AMQPURL:      firstNonEmpty(v.GetString("AMQP_URL"), v.GetString("RABBITMQ_URL")),
		AuditQueue:   v.GetString("AUDIT_QUEUE"),
		AuditLogPath: v.GetString("AUDIT_LOG_PATH"),

		HousekeepingSchedule: v.GetString("HOUSEKEEPING_SCHEDULE"),

		Redis: loadRedis(v),
		Cache: loadCache(v),
	}

	switch cfg.Env {
	case "development", "test", "production":
	default:
		errs = append(errs, fmt.Errorf("APP_ENV must be development, test or production, got %q", cfg.Env))
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", MinSecretLength))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_ROUNDS out of range: %d", cfg.BcryptCost))
	}
	if cfg.BcryptConcurrency < 1 {
		cfg.BcryptConcurrency = 1
	}
	return cfg, errors.Join(errs...)
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}
