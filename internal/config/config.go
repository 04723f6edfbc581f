// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Push     PushConfig
	Email    EmailConfig
	Session  SessionConfig
}

type AppConfig struct {
	Environment string // "development", "production", "test"
	LogLevel    string
	LogEncoding string // "json" or "console"
}

// StoreConfig selects the remote store backend.
type StoreConfig struct {
	Backend        string // "memory", "redis", "postgres"
	MigrationsPath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PushConfig controls the push-notification pipeline.
type PushConfig struct {
	Provider      string // "fcm" or "console"
	FCMServerKey  string
	OutboxPath    string
	DrainInterval time.Duration
	MaxRetries    int
}

type EmailConfig struct {
	Provider     string // "resend" or "console"
	FromAddress  string
	FromName     string
	ResendAPIKey string
}

// SessionConfig holds the identity syncd signs in with.
type SessionConfig struct {
	Email    string
	Password string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func Load() (*Config, error) {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogEncoding: getEnv("LOG_ENCODING", "json"),
		},
		Store: StoreConfig{
			Backend:        getEnv("STORE_BACKEND", "memory"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "tandem"),
			Password: getEnv("DB_PASSWORD", "tandem"),
			DBName:   getEnv("DB_NAME", "tandem"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Push: PushConfig{
			Provider:      getEnv("PUSH_PROVIDER", "console"),
			FCMServerKey:  getEnv("FCM_SERVER_KEY", ""),
			OutboxPath:    getEnv("PUSH_OUTBOX_PATH", "data/push-outbox.db"),
			DrainInterval: getEnvDuration("PUSH_DRAIN_INTERVAL", 30*time.Second),
			MaxRetries:    getEnvInt("PUSH_MAX_RETRIES", 3),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", "console"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@tandemlist.app"),
			FromName:     getEnv("EMAIL_FROM_NAME", "Tandem"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		Session: SessionConfig{
			Email:    getEnv("SESSION_EMAIL", ""),
			Password: getEnv("SESSION_PASSWORD", ""),
		},
	}

	switch cfg.Store.Backend {
	case "memory", "redis", "postgres":
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
