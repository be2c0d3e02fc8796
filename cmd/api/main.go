package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avatar-service/internal/api"
	"avatar-service/internal/config"
	"avatar-service/internal/db"
	"avatar-service/internal/logging"
	"avatar-service/internal/redis"
	"avatar-service/internal/storage"
	"avatar-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_api", "service", "avatar-service", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := dbConn.Migrate(ctx); err != nil {
		logger.Error("db_migrate_failed", "error", err)
		os.Exit(1)
	}

	// redis is optional: without it rate limiting falls back to the
	// in-process limiter and user fetches skip the cache
	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Warn("redis_connect_failed", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var files storage.Client
	if cfg.S3Bucket != "" {
		files, err = storage.NewS3Client(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
			Region:    cfg.S3Region,
		})
		if err != nil {
			logger.Error("s3_init_failed", "error", err)
			os.Exit(1)
		}
		logger.Info("storage_backend", "backend", "s3", "bucket", cfg.S3Bucket)
	} else {
		files, err = storage.NewLocal(cfg.UploadDir)
		if err != nil {
			logger.Error("upload_dir_init_failed", "error", err)
			os.Exit(1)
		}
		logger.Info("storage_backend", "backend", "local", "dir", cfg.UploadDir)
	}

	users := store.NewPostgresUsers(dbConn)

	sweeper := storage.NewSweepJob(logging.ForComponent(logger, "sweeper"), dbConn, files)
	go sweeper.Start(ctx)

	srv := api.NewServer(logging.ForComponent(logger, "api"), dbConn, users, files, redisClient, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_started", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis_close_error", "error", err)
		}
	}

	dbConn.Close()
	logger.Info("api_stopped")
}
