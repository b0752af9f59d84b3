package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/database"
	"github.com/user/linkshortener/internal/database/migrations"
)

// Open connects to the store selected by cfg.Driver and, when
// cfg.AutoMigrate is set, brings its schema up to date first. The
// returned func releases the connection.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if cfg.AutoMigrate {
			m, err := migrations.NewPostgres(cfg.URL, logger)
			if err != nil {
				return nil, nil, err
			}
			err = m.Up()
			_ = m.Close()
			if err != nil {
				return nil, nil, err
			}
		}

		db, err := database.NewPostgresDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(db), db.Close, nil

	case config.DriverSQLite:
		db, err := database.NewSQLiteDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() { _ = db.Close() }

		if cfg.AutoMigrate {
			m, err := migrations.NewSQLite(db.DB, logger)
			if err != nil {
				closeDB()
				return nil, nil, err
			}
			if err := m.Up(); err != nil {
				closeDB()
				return nil, nil, err
			}
		}
		return NewSQLiteStore(db), closeDB, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
