// Package testutils provides migrated stores for tests.
//
// SQLite stores are private in-memory databases and are always
// available. PostgreSQL and Redis run in testcontainers and are skipped
// under -short or when no container provider is reachable.
package testutils

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/database"
	"github.com/user/linkshortener/internal/database/migrations"
	"github.com/user/linkshortener/internal/repository"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLiteDB opens a fresh migrated in-memory database closed at cleanup.
func NewSQLiteDB(t testing.TB) *database.SQLiteDB {
	t.Helper()

	ctx := context.Background()
	db, err := database.NewSQLiteDB(ctx, config.StoreConfig{
		Driver: config.DriverSQLite,
		URL:    database.MemoryURL(t.Name() + "-" + uuid.NewString()),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	m, err := migrations.NewSQLite(db.DB, Logger())
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return db
}

// NewSQLiteStore returns a store on NewSQLiteDB.
func NewSQLiteStore(t testing.TB) *repository.SQLiteStore {
	t.Helper()
	return repository.NewSQLiteStore(NewSQLiteDB(t))
}

// NewPostgresStore starts a PostgreSQL container, migrates it and
// returns a store on it.
func NewPostgresStore(t *testing.T) *repository.PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("links"),
		tcpostgres.WithUsername("links"),
		tcpostgres.WithPassword("links"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	m, err := migrations.NewPostgres(dsn, Logger())
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		t.Fatalf("failed to migrate postgres: %v", err)
	}

	db, err := database.NewPostgresDB(ctx, config.StoreConfig{
		Driver:       config.DriverPostgres,
		URL:          dsn,
		MaxOpenConns: 10,
	})
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(db.Close)

	return repository.NewPostgresStore(db)
}

// NewRedis starts a Redis container and returns a client wrapper on it.
func NewRedis(t *testing.T) *database.RedisDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         endpoint,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}

	rdb := database.NewRedisFromClient(client, time.Minute)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
