package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pantry/internal/cli"
	applog "pantry/internal/log"
	"pantry/internal/services"
	"pantry/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting pantry-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := cli.NewApp(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize pantry", "error", err)
		os.Exit(1)
	}

	var refresher worker.Refresher
	if app.Backend.Refresher != nil {
		refresher = app.Backend.Refresher
	}
	w := worker.NewCategoryWorker(app.Backend.Categories, refresher, app.Engine, app.Service)

	// An empty store gets the default categories once; failures are not
	// fatal since the server works without them.
	logger.Info("Checking category store...")
	if err := w.SeedIfEmpty(ctx); err != nil {
		logger.Error("Failed to seed default categories", "error", err)
	}

	refresh := services.NewRefreshProcessor(app.Backend.Categories, app.Engine, services.RefreshProcessorConfig{
		Interval: cfg.RefreshInterval,
	})

	g, gctx := errgroup.WithContext(ctx)

	if err := refresh.Start(gctx); err != nil {
		logger.Error("Failed to start refresh processor", "error", err)
		os.Exit(1)
	}

	if app.Backend.Events != nil {
		g.Go(func() error {
			err := w.Run(gctx, app.Backend.Events)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.Info("Skipping AMQP consumption - no AMQP_URL provided")
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()

		if err := refresh.Stop(stopCtx); err != nil {
			logger.Warn("Refresh processor stop error", "error", err)
		}
		if err := app.Close(stopCtx); err != nil {
			logger.Warn("Cleanup error", "error", err)
		}
		return nil
	})

	sigCtx, done := cli.GracefulShutdown(logger, 35*time.Second, cancel)

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	if sigCtx.Err() != nil {
		<-done
	}
	logger.Info("Worker stopped gracefully")
}
