// Command server runs the internal HTTP API. Without REDIS_ADDR it also runs
// the pipeline tasks in process.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/vaultindex/internal/api"
	"github.com/dharsanguruparan/vaultindex/internal/app"
	"github.com/dharsanguruparan/vaultindex/internal/config"
	"github.com/dharsanguruparan/vaultindex/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl := logger.New(cfg.LogFilePath, cfg.IsProduction())
	defer func() { _ = zl.Sync() }()

	// Cancelled on SIGINT/SIGTERM; every goroutine below watches it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("init app", zap.Error(err))
	}
	defer a.Close()
	a.Start(ctx)

	deps := api.Deps{
		Pipeline: a.Ingest,
		Projects: a.Projects,
		Search:   a.Index,
		Blobs:    a.Blobs,
		Log:      zl,
	}
	if a.Signer != nil {
		deps.Signer = a.Signer
	}
	srv := api.New(cfg, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if cfg.RecoverOnStart {
		g.Go(func() error {
			report, err := a.Ingest.FixStuckDocuments(gctx)
			if err != nil {
				zl.Warn("startup recovery failed", zap.Error(err))
				return nil
			}
			zl.Info("startup recovery finished", zap.Int("fixed", report.Fixed), zap.Strings("errors", report.Errors))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		zl.Error("server stopped", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
}
