package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func TestNewPostgresDB_ParseError(t *testing.T) {
	origParse := parsePGConfig
	t.Cleanup(func() { parsePGConfig = origParse })
	parsePGConfig = func(string) (*pgxpool.Config, error) {
		return nil, errors.New("bad dsn")
	}

	_, err := NewPostgresDB("bad")
	if err == nil || !strings.Contains(err.Error(), "parsing database config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestNewPostgresDB_PingErrorClosesPool(t *testing.T) {
	origParse := parsePGConfig
	origNew := newPGPool
	origPing := pingPGPool
	origClose := closePGPool
	t.Cleanup(func() {
		parsePGConfig = origParse
		newPGPool = origNew
		pingPGPool = origPing
		closePGPool = origClose
	})

	parsePGConfig = func(string) (*pgxpool.Config, error) { return &pgxpool.Config{}, nil }
	newPGPool = func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) { return &pgxpool.Pool{}, nil }
	pingPGPool = func(context.Context, *pgxpool.Pool) error { return errors.New("ping failed") }
	closed := false
	closePGPool = func(*pgxpool.Pool) { closed = true }

	_, err := NewPostgresDB("dsn")
	if err == nil || !strings.Contains(err.Error(), "pinging database") {
		t.Fatalf("expected ping error, got %v", err)
	}
	if !closed {
		t.Fatal("expected pool closed after failed ping")
	}
}

func TestNewPostgresDB_SetsPoolLimits(t *testing.T) {
	origParse := parsePGConfig
	origNew := newPGPool
	origPing := pingPGPool
	t.Cleanup(func() {
		parsePGConfig = origParse
		newPGPool = origNew
		pingPGPool = origPing
	})

	cfg := &pgxpool.Config{}
	parsePGConfig = func(string) (*pgxpool.Config, error) { return cfg, nil }
	pool := &pgxpool.Pool{}
	newPGPool = func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) { return pool, nil }
	pingPGPool = func(context.Context, *pgxpool.Pool) error { return nil }

	db, err := NewPostgresDB("dsn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.Pool != pool {
		t.Fatal("expected returned pool to match constructed pool")
	}
	if cfg.MaxConns != 25 || cfg.MinConns != 5 {
		t.Fatalf("unexpected pool limits: max=%d min=%d", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.MaxConnLifetime != time.Hour || cfg.MaxConnIdleTime != 30*time.Minute {
		t.Fatalf("unexpected lifetimes: %v, %v", cfg.MaxConnLifetime, cfg.MaxConnIdleTime)
	}
}

func TestNewRedisDB_SetsOptions(t *testing.T) {
	origNew := newRedisClient
	origPing := redisPing
	t.Cleanup(func() {
		newRedisClient = origNew
		redisPing = origPing
	})

	var got redis.Options
	newRedisClient = func(opts *redis.Options) *redis.Client {
		got = *opts
		return &redis.Client{}
	}
	redisPing = func(context.Context, *redis.Client) error { return nil }

	db, err := NewRedisDB("localhost:6379", "secret", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.Client == nil {
		t.Fatal("expected client")
	}
	if got.Addr != "localhost:6379" || got.Password != "secret" || got.DB != 2 {
		t.Fatalf("unexpected options: %+v", got)
	}
	if got.PoolSize != 10 || got.MinIdleConns != 3 {
		t.Fatalf("unexpected pool sizing: %+v", got)
	}
}

func TestNewRedisDB_PingError(t *testing.T) {
	origNew := newRedisClient
	origPing := redisPing
	t.Cleanup(func() {
		newRedisClient = origNew
		redisPing = origPing
	})

	newRedisClient = func(*redis.Options) *redis.Client { return &redis.Client{} }
	redisPing = func(context.Context, *redis.Client) error { return errors.New("ping failed") }

	_, err := NewRedisDB("localhost:6379", "", 0)
	if err == nil || !strings.Contains(err.Error(), "pinging redis") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestRedisDB_CloseNil(t *testing.T) {
	db := &RedisDB{}
	if err := db.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestNewMigrator_InvalidDSN(t *testing.T) {
	_, err := NewMigrator("not-a-dsn", "migrations")
	if err == nil || !strings.Contains(err.Error(), "creating migrator") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestMigrateRecords_InvalidDSN(t *testing.T) {
	err := MigrateRecords("not-a-dsn", "migrations")
	if err == nil || !strings.Contains(err.Error(), "creating migrator") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
