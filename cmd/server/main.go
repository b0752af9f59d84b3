// ===========================================
// Link Shortener - Main Entry Point
// ===========================================
// RESPONSIBILITY:
// 1. Load configuration
// 2. Open the backing store (migrating it) and the optional Redis
// 3. Start the click recorder workers
// 4. Serve HTTP
// 5. Shut down in order: HTTP, click queue, connections
//
// Fail fast at startup: if a configured dependency is unreachable,
// exit before serving anything.
// ===========================================

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/database"
	"github.com/user/linkshortener/internal/handler"
	"github.com/user/linkshortener/internal/middleware"
	"github.com/user/linkshortener/internal/repository"
	"github.com/user/linkshortener/internal/service"
)

// Version is set at build time using ldflags.
// go build -ldflags "-X main.Version=1.0.0"
var Version = "dev"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// ===========================================
	// Step 1: Configuration and Logging
	// ===========================================
	// A missing .env is fine; production sets real environment variables.
	_ = godotenv.Load()

	bootLogger := config.LogConfig{}.NewLogger(os.Stderr)
	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		return err
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	logger.Info("starting link shortener", "version", Version, "port", cfg.Server.Port, "store", cfg.Store.Driver)

	// ===========================================
	// Step 2: Backing Store
	// ===========================================
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := repository.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		return err
	}
	defer closeStore()
	logger.Info("store connected", "driver", cfg.Store.Driver)

	// ===========================================
	// Step 3: Redis (optional)
	// ===========================================
	// Without Redis there is no resolve cache and no rate limiting.
	var redis *database.RedisDB
	if cfg.Redis.Enabled() {
		redis, err = database.NewRedisDB(ctx, cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			return err
		}
		defer redis.Close()
		logger.Info("redis connected")
	} else {
		logger.Warn("redis not configured, cache and rate limiting disabled")
	}

	// ===========================================
	// Step 4: Services
	// ===========================================
	recorder := service.NewClickRecorder(store, cfg.Recorder, logger)
	links := service.NewLinkService(store, redis, recorder, cfg.Shortener, cfg.Store.OperationTimeout, logger)
	analytics := service.NewAnalyticsService(store, store, cfg.Store.OperationTimeout, logger)
	health := service.NewHealthReporter(store, redis, recorder, Version, logger)

	// ===========================================
	// Step 5: Router
	// ===========================================
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	auth := middleware.NewAdminAuth(cfg.Auth.APIKeys)
	if !auth.Enabled() {
		logger.Warn("no admin API keys configured, /api is open")
	}

	router, err := handler.NewRouter(handler.RouterDeps{
		Links:          handler.NewLinkHandler(links, logger),
		Analytics:      handler.NewAnalyticsHandler(analytics, logger),
		Health:         handler.NewHealthHandler(health),
		Auth:           auth,
		RateLimiter:    middleware.NewRateLimiter(redis, cfg.RateLimit.RequestsPerMinute, logger),
		Logger:         logger,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		logger.Error("failed to build router", "error", err)
		_ = recorder.Close(context.Background())
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// ===========================================
	// Step 6: Serve
	// ===========================================
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		logger.Error("server failed", "error", err)
		_ = recorder.Close(context.Background())
		return err
	}

	// ===========================================
	// Step 7: Graceful Shutdown
	// ===========================================
	// HTTP first so no new clicks are queued, then drain the queue
	// while the store is still open. Deferred closes run last.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	if err := recorder.Close(shutdownCtx); err != nil {
		stats := recorder.Stats()
		logger.Error("click queue not fully drained", "pending", stats.Pending, "error", err)
	}

	stats := recorder.Stats()
	logger.Info("server stopped",
		"clicks_recorded", stats.Recorded,
		"clicks_failed", stats.Failed,
		"clicks_dropped", stats.Dropped,
	)
	return nil
}
