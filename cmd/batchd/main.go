package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkaiser/batchline/internal/api"
	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/executor"
	"github.com/dkaiser/batchline/internal/ingest"
	"github.com/dkaiser/batchline/internal/logger"
	"github.com/dkaiser/batchline/internal/repository"
	"github.com/dkaiser/batchline/internal/service"
	"github.com/dkaiser/batchline/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"), nil)
	if err != nil {
		logger.GetDefault().WithError(err).Fatal("Failed to load config")
	}

	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		File:        cfg.Log.File,
		ServiceName: "batchd",
	})
	logger.SetDefaultLogger(appLogger)

	var registry *repository.BatchRegistry
	if cfg.Registry.DSN != "" {
		db, err := repository.InitDB(cfg.Registry.DSN)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize batch registry")
		}
		registry = repository.NewBatchRegistry(db)
	}

	run := repository.NewRunContext(cfg.Engine.RunsDir)
	repo := repository.NewManifestRepository(run, registry)

	exec, err := executor.New(cfg.Executor)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize executor")
	}

	var mirror storage.ObjectStorage
	if cfg.Mirror.Enabled {
		mirror, err = storage.NewStorage(&storage.S3Config{
			Endpoint:  cfg.Mirror.Endpoint,
			AccessKey: cfg.Mirror.AccessKey,
			SecretKey: cfg.Mirror.SecretKey,
			UseSSL:    cfg.Mirror.UseSSL,
			Bucket:    cfg.Mirror.Bucket,
			Region:    cfg.Mirror.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize artifact mirror")
		}
	}

	parser := ingest.NewParser(cfg.Engine)
	batchService := service.NewBatchService(parser, repo, exec, mirror, appLogger)
	defaultPolicy := service.PolicyFromConfig(cfg.Retry)

	router := api.SetupRouter(batchService, defaultPolicy, cfg.Server.Mode)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":            cfg.Server.Port,
			logger.FieldRunID: run.RunID,
		}).Info("Starting batch API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Forced shutdown")
	}
}
