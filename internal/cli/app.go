package cli

import (
	"context"
	"errors"
	"fmt"

	"pantry/internal/backend"
	"pantry/internal/cache"
	"pantry/internal/colors"
	"pantry/internal/config"
	applog "pantry/internal/log"
	"pantry/internal/pending"
	"pantry/internal/reconcile"
	"pantry/internal/recognition"
	"pantry/internal/services"
)

// App is the wired core shared by the server and the worker: one backend,
// one reconciliation engine watching the category store, and the service
// on top.
type App struct {
	Config  *config.Config
	Backend *backend.BackendResult
	Engine  *reconcile.Engine
	Batches *pending.Store
	Service *services.PantryService

	unwatch func()
}

// NewApp opens the backend, starts the engine and subscribes it to the
// category store. The first snapshot is applied before NewApp returns.
func NewApp(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*App, error) {
	res, err := OpenBackend(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	alloc := colors.NewAllocator()
	engine := reconcile.NewEngine(cache.NewLocal(res.Blobs), alloc, reconcile.Config{QueueSize: cfg.EngineQueueSize})
	if err := engine.Start(ctx); err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("start reconciliation engine: %w", err)
	}

	unwatch, err := engine.Watch(ctx, res.Categories)
	if err != nil {
		_ = engine.Stop(context.Background())
		_ = res.Close()
		return nil, fmt.Errorf("watch category store: %w", err)
	}

	var recognizer services.Recognizer
	if cfg.RecognizeURL != "" || cfg.InterpretURL != "" {
		recognizer = recognition.NewClient(cfg.RecognizeURL, cfg.InterpretURL, cfg.RecognitionTimeout)
	}

	batches := pending.NewStore(cfg.BatchMaxSize, cfg.BatchTTL)
	svc := services.NewPantryService(res.Categories, res.Items, engine, alloc, recognizer, batches)

	logger.InfoContext(ctx, "Pantry core ready",
		"queue_size", cfg.EngineQueueSize,
		"recognition", recognizer != nil)

	return &App{
		Config:  cfg,
		Backend: res,
		Engine:  engine,
		Batches: batches,
		Service: svc,
		unwatch: unwatch,
	}, nil
}

// Close unsubscribes, drains the engine and releases the backend.
func (a *App) Close(ctx context.Context) error {
	if a.unwatch != nil {
		a.unwatch()
	}
	return errors.Join(a.Engine.Stop(ctx), a.Backend.Close())
}
