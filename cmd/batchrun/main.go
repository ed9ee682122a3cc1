package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dkaiser/batchline/internal/config"
	"github.com/dkaiser/batchline/internal/executor"
	"github.com/dkaiser/batchline/internal/ingest"
	"github.com/dkaiser/batchline/internal/logger"
	"github.com/dkaiser/batchline/internal/repository"
	"github.com/dkaiser/batchline/internal/service"
	"github.com/dkaiser/batchline/internal/storage"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "batchrun",
	})
	logger.SetDefaultLogger(appLogger)

	input := flag.String("input", "", "Tabular input file to create a batch from")
	batchID := flag.String("batch", "", "Existing batch to operate on instead of creating one")
	retryIDs := flag.String("retry", "", "Comma-separated failed job ids to reset before executing")
	stop := flag.Bool("stop", false, "Stop the batch instead of executing it")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger = logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		File:        cfg.Log.File,
		ServiceName: "batchrun",
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
	batches := service.NewBatchService(parser, repo, exec, mirror, appLogger)
	policy := service.PolicyFromConfig(cfg.Retry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		cancel()
	}()

	id := *batchID
	switch {
	case *input != "":
		m, err := batches.CreateBatch(ctx, *input)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to create batch")
		}
		id = m.BatchID
	case id == "":
		appLogger.Fatal("Either -input or -batch is required")
	}

	if *stop {
		result, err := batches.StopBatch(ctx, id)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to stop batch")
		}
		fmt.Printf("stopped=%d unaffected=%d total=%d\n", result.Stopped, result.Unaffected, result.Total)
		return
	}

	if *retryIDs != "" {
		ids := strings.Split(*retryIDs, ",")
		result, err := batches.RetryJobs(ctx, id, ids, policy)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to prepare retries")
		}
		appLogger.WithFields(logger.Fields{
			"reset":   len(result.Reset),
			"skipped": len(result.Skipped),
		}).Info("Retry preparation finished")
	}

	result, err := batches.ExecuteBatch(ctx, id, policy, func(completed, total int) {
		fmt.Printf("\rprogress: %d/%d", completed, total)
	})
	fmt.Println()
	if err != nil {
		appLogger.WithError(err).Fatal("Batch execution failed")
	}

	summary, err := batches.Summarize(ctx, id)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to summarize batch")
	}
	fmt.Printf("batch %s: executed=%d completed=%d failed=%d pending=%d success_rate=%.1f%%\n",
		summary.BatchID, result.Executed, summary.CompletedJobs, summary.FailedJobs, summary.PendingJobs, summary.SuccessRate)
}
