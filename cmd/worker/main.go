package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/metrics-hub/internal/app"
	"github.com/ignite/metrics-hub/internal/config"
	"github.com/ignite/metrics-hub/internal/pkg/logger"
	"github.com/ignite/metrics-hub/internal/platformsync"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single sync round and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.Info("starting platform sync worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := app.OpenRedis(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	archive, err := app.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Error("aws storage unavailable", "error", err)
		os.Exit(1)
	}
	var s3c platformsync.S3API
	if archive != nil && archive.S3Client() != nil {
		s3c = archive.S3Client()
	}

	// Rounds that store entries drop cached overviews shared with the server.
	ov, err := app.NewOverview(cfg, db, rdb)
	if err != nil {
		logger.Error("invalid overview config", "error", err)
		os.Exit(1)
	}
	syncer := app.NewSyncer(cfg, db, rdb, s3c, ov)
	if len(syncer.Platforms()) == 0 {
		logger.Warn("no sync sources configured, rounds will do nothing")
	}

	if *once {
		report, err := syncer.RunOnce(ctx)
		if err != nil {
			logger.Error("sync round failed", "error", err)
			os.Exit(1)
		}
		logger.Info("sync round done", "outcome", report.Outcome(), "synced", report.Synced, "failed", report.Failed)
		return
	}

	syncer.Start()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	logger.Info("shutting down worker")
	syncer.Stop()
	for k, v := range syncer.Stats() {
		logger.Info("sync stats", "stat", k, "value", v)
	}
}
