// Command worker consumes pipeline tasks from Redis.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/vaultindex/internal/app"
	"github.com/dharsanguruparan/vaultindex/internal/config"
	"github.com/dharsanguruparan/vaultindex/internal/logger"
	"github.com/dharsanguruparan/vaultindex/internal/queue"
	"github.com/dharsanguruparan/vaultindex/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.RedisAddr == "" {
		log.Fatal("worker requires REDIS_ADDR; without it the server runs tasks in process")
	}
	zl := logger.Component(logger.New(cfg.LogFilePath, cfg.IsProduction()), "worker")
	defer func() { _ = zl.Sync() }()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("init app", zap.Error(err))
	}
	defer a.Close()

	server := asynq.NewServer(app.RedisOpt(cfg), asynq.Config{
		Concurrency:    cfg.WorkerConcurrency,
		RetryDelayFunc: queue.RetryDelayFunc(app.RetryPolicy(cfg)),
		Logger:         zl.Sugar(),
	})
	mux := worker.NewProcessor(a.Ingest, zl).Handler()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(mux) })
	g.Go(func() error {
		<-gctx.Done()
		server.Shutdown()
		return nil
	})
	if err := g.Wait(); err != nil {
		zl.Error("worker stopped", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
}
