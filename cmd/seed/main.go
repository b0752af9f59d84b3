// Command seed loads development links and click history into the
// configured store. It reads the same configuration as the server and
// is safe to run repeatedly.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/repository"
	"github.com/user/linkshortener/internal/seed"
	"github.com/user/linkshortener/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		config.LogConfig{}.NewLogger(os.Stderr).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, closeStore, err := repository.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}

	recorder := service.NewClickRecorder(store, cfg.Recorder, logger)
	links := service.NewLinkService(store, nil, recorder, cfg.Shortener, cfg.Store.OperationTimeout, logger)
	res, err := seed.New(links, recorder, logger, nil).Run(ctx, seed.Links, seed.Clicks)
	_ = recorder.Close(ctx)
	closeStore()

	if err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database seeded",
		"links_created", res.LinksCreated,
		"links_skipped", res.LinksSkipped,
		"clicks", res.Clicks,
	)
}
