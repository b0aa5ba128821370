package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"betternews/internal/cache"
	"betternews/internal/config"
	"betternews/internal/db"
	"betternews/internal/handlers"
	"betternews/internal/logging"
	"betternews/internal/router"
	"betternews/internal/services"
	"betternews/internal/telemetry"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Debug("No .env file found, using environment only")
	}
	logger.Info("Starting betternews API server", zap.String("env", cfg.Server.Env))

	telemetryShutdown, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		if metrics, err = telemetry.NewMetrics(); err != nil {
			logger.Fatal("Failed to register metrics", zap.Error(err))
		}
	}

	gdb, err := db.Open(cfg.Database, cfg.Logging.Level, logger)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	store, err := cache.New(cfg.Cache, logger)
	if err != nil {
		logger.Fatal("Failed to initialize post cache", zap.Error(err))
	}
	var cachePinger handlers.Pinger
	if r, ok := store.(*cache.Redis); ok {
		defer r.Close()
		cachePinger = r
	}

	deps := services.Deps{
		DB:       gdb,
		Cache:    store,
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
		Metrics:  metrics,
	}
	auth := services.NewAuthService(deps, cfg.Session.TTL)
	posts := services.NewPostService(deps)
	comments := services.NewCommentService(deps, posts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go services.NewSessionSweeper(auth, cfg.Session.SweepInterval).Run(ctx)

	if strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := router.New(router.Deps{
		Config:   cfg,
		DB:       gdb,
		Auth:     auth,
		Posts:    posts,
		Comments: comments,
		Cache:    cachePinger,
		Logger:   logger,
		Metrics:  metrics,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
