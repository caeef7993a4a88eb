package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/app"
	"github.com/nimasrn/receipt-gateway/internal/config"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
	"github.com/nimasrn/receipt-gateway/pkg/worker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(app.EnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting receipt batch", "version", version, "commit", commit, "date", date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	receipts, err := app.NewReceipts(ctx, cfg)
	if err != nil {
		logger.Error("failed to build receipt pipeline", "error", err)
		return
	}
	app.StartMetrics(cfg)

	if cfg.BatchInterval <= 0 {
		runOnce(ctx, receipts)
		return
	}

	// At most one run waits behind the current one; extra ticks are dropped.
	manager := worker.NewWorkerManager[time.Time](1, 1)
	manager.SetWorker(func(ctx context.Context, _ int, tick time.Time) {
		logger.Debug("batch tick", "at", tick)
		runOnce(ctx, receipts)
	})

	go func() {
		ticker := time.NewTicker(cfg.BatchInterval)
		defer ticker.Stop()
		manager.TryEnqueue(time.Now())
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				if !manager.TryEnqueue(t) {
					logger.Warn("previous batch still running, skipping tick")
				}
			}
		}
	}()

	logger.Info("batch scheduler started", "interval", cfg.BatchInterval)
	if err := manager.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("batch scheduler stopped", "error", err)
	}
	logger.Info("batch scheduler exited")
}

func runOnce(ctx context.Context, receipts *app.Receipts) {
	res, err := receipts.Service.ProcessPending(ctx)
	if err != nil {
		logger.Error("batch run failed", "error", err)
		return
	}
	logger.Info("batch run finished",
		"processed", res.Processed,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"interrupted", res.Interrupted,
	)
}
