package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nbatyrov/boxstore/internal/bucket"
	"github.com/nbatyrov/boxstore/internal/config"
	"github.com/nbatyrov/boxstore/internal/file"
	"github.com/nbatyrov/boxstore/internal/identity"
	"github.com/nbatyrov/boxstore/internal/logger"
	"github.com/nbatyrov/boxstore/internal/quota"
	"github.com/nbatyrov/boxstore/internal/server"
	"github.com/nbatyrov/boxstore/internal/storage"
)

func main() {
	_ = godotenv.Load()

	zlog, err := logger.Init()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		zlog.Fatal("connect minio", zap.Error(err))
	}
	objectStore := storage.NewMinIOStore(minioClient, cfg.MinIO.Region, cfg.MinIO.PublicBaseURL)

	quotaRepo := quota.NewRepository(dbPool)
	quotaService := quota.NewService(quotaRepo, cfg.Quota.DefaultMemoryBytes, cfg.Quota.DefaultAPICalls)

	bucketRepo := bucket.NewRepository(dbPool)
	fileRepo := file.NewRepository(dbPool)

	fileService := file.NewService(fileRepo, bucketRepo, objectStore, quotaService)
	bucketService := bucket.NewService(bucketRepo, fileService, objectStore, quotaService)

	router := server.NewRouter(server.Dependencies{
		Config:        cfg,
		DB:            dbPool,
		ObjectStore:   minioClient,
		Resolver:      identity.NewJWTResolver(cfg.Auth.JWTSecret),
		QuotaService:  quotaService,
		BucketService: bucketService,
		FileService:   fileService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zlog.Info("Boxstore API listening", zap.String("addr", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zlog.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown", zap.Error(err))
	}
}
