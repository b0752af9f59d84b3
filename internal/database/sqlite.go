// ===========================================
// Package database - SQLite Connection
// ===========================================
// SQLite backs local development, single-node deployments and the
// test suite. Local files and in-memory databases go through the
// pure-Go modernc driver; libsql:// and wss:// URLs go to a remote
// libsql (Turso) server.
//
// Every local connection is opened with foreign_keys=ON so that
// deleting a link cascades to its click events.
// ===========================================

package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // remote libsql driver
	"github.com/user/linkshortener/internal/config"
	_ "modernc.org/sqlite" // local SQLite driver
)

// SQLiteDB wraps a database/sql handle opened on a SQLite-compatible driver.
type SQLiteDB struct {
	DB     *sql.DB
	Driver string // "sqlite" or "libsql"
}

// NewSQLiteDB opens and pings a SQLite database.
func NewSQLiteDB(ctx context.Context, cfg config.StoreConfig) (*SQLiteDB, error) {
	driver, dsn := sqliteDSN(cfg.URL)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite has a single writer. One connection serializes writes
		// in-process instead of surfacing SQLITE_BUSY to callers, and keeps
		// in-memory databases alive for the life of the handle.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &SQLiteDB{DB: db, Driver: driver}, nil
}

// Close releases the database handle.
func (s *SQLiteDB) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// Health checks if the database is responsive.
func (s *SQLiteDB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}

// MemoryURL returns a URL for a private, named in-memory database.
// Distinct names never share data.
func MemoryURL(name string) string {
	return "file:" + url.PathEscape(name) + "?mode=memory&cache=shared"
}

// sqliteDSN picks the driver for rawURL and, for local databases,
// appends the pragmas every connection needs.
func sqliteDSN(rawURL string) (driver, dsn string) {
	if strings.HasPrefix(rawURL, "libsql://") || strings.HasPrefix(rawURL, "wss://") ||
		strings.HasPrefix(rawURL, "https://") || strings.HasPrefix(rawURL, "http://") {
		return "libsql", rawURL
	}

	dsn = strings.TrimPrefix(rawURL, "sqlite://")
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}
	if !strings.Contains(dsn, "mode=memory") && !strings.Contains(dsn, ":memory:") {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return "sqlite", dsn + sep + strings.Join(pragmas, "&")
}
