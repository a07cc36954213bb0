package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pantry/internal/cli"
	apphttp "pantry/internal/http"
	applog "pantry/internal/log"
	"pantry/internal/services"
	"pantry/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp)
	logger.Info("Starting pantry server")

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := cli.NewApp(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize pantry", "error", err)
		os.Exit(1)
	}

	stopCleanup := make(chan struct{})
	app.Batches.StartCleanup(time.Minute, stopCleanup)

	refresh := services.NewRefreshProcessor(app.Backend.Categories, app.Engine, services.RefreshProcessorConfig{
		Interval: cfg.RefreshInterval,
	})

	checks := map[string]apphttp.ReadinessCheck{
		"categories": func(ctx context.Context) error {
			_, err := app.Backend.Categories.List(ctx)
			return err
		},
	}
	if app.Backend.Ping != nil {
		checks["storage"] = app.Backend.Ping
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Pantry:         app.Service,
		Engine:         app.Engine,
		Batches:        app.Batches,
		Checks:         checks,
		Logger:         logger,
		TrustedProxies: cfg.TrustedProxies,
		RequestTimeout: 30 * time.Second,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := refresh.Start(gctx); err != nil {
		logger.Error("Failed to start refresh processor", "error", err)
	}

	// Category events from other processes trigger passes here too, so the
	// server's cache follows changes made by the worker or the CLI.
	if app.Backend.Events != nil {
		var refresher worker.Refresher
		if app.Backend.Refresher != nil {
			refresher = app.Backend.Refresher
		}
		w := worker.NewCategoryWorker(app.Backend.Categories, refresher, app.Engine, app.Service)
		g.Go(func() error {
			if err := w.Run(gctx, app.Backend.Events); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Category event consumption stopped", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := refresh.Stop(shutdownCtx); err != nil {
			logger.Warn("Refresh processor stop error", "error", err)
		}
		close(stopCleanup)
		if err := app.Close(shutdownCtx); err != nil {
			logger.Warn("Cleanup error", "error", err)
		}
		return nil
	})

	sigCtx, done := cli.GracefulShutdown(logger, 35*time.Second, cancel)

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	if sigCtx.Err() != nil {
		<-done
	}
	logger.Info("Server stopped gracefully")
}
