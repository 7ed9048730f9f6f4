package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/metrics-hub/internal/api"
	"github.com/ignite/metrics-hub/internal/app"
	"github.com/ignite/metrics-hub/internal/config"
	"github.com/ignite/metrics-hub/internal/pkg/logger"
	"github.com/ignite/metrics-hub/internal/platformsync"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %w", addr, err)
	}
	return ln.Close()
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.Info("starting metrics hub server", "addr", cfg.Server.Addr())

	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		fatal("pre-flight check failed", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		fatal("database unavailable", err)
	}
	defer db.Close()

	rdb := app.OpenRedis(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	archive, err := app.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		fatal("aws storage unavailable", err)
	}

	ov, err := app.NewOverview(cfg, db, rdb)
	if err != nil {
		fatal("invalid overview config", err)
	}
	imports := app.NewImports(cfg, db, archive, ov)

	var s3c platformsync.S3API
	hc := api.NewHealthChecker(db, rdb, nil, "")
	if archive != nil && archive.S3Client() != nil {
		s3c = archive.S3Client()
		hc = api.NewHealthChecker(db, rdb, archive.S3Client(), cfg.Storage.S3Bucket)
	}
	// The server only runs rounds on demand; the worker owns the schedule.
	syncer := app.NewSyncer(cfg, db, rdb, s3c, ov)

	handlers := api.NewHandlers(imports, ov, syncer, cfg.Imports)
	server := api.NewServer(cfg.Server, handlers, hc)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server error", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
