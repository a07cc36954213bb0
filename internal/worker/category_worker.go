package worker

import (
	"context"
	"fmt"
	"log/slog"

	"pantry/internal/amqp"
	"pantry/internal/core"
	"pantry/internal/reconcile"
)

// Engine is the part of the reconciliation engine the worker drives.
type Engine interface {
	ApplySnapshot(ctx context.Context, cats []core.Category) (reconcile.Result, error)
	Forget(ctx context.Context, names ...string) (reconcile.Result, error)
}

type CategoryLister interface {
	List(ctx context.Context) ([]core.Category, error)
}

// Refresher re-reads a store and notifies its subscribers.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Seeder interface {
	SeedDefaults(ctx context.Context) ([]core.Category, error)
}

// EventConsumer is satisfied by *amqp.Client.
type EventConsumer interface {
	ConsumeCategoryEvents(ctx context.Context, handler func(context.Context, *amqp.CategoryEvent) error) error
}

// CategoryWorker turns category events from other processes into
// reconciliation passes.
type CategoryWorker struct {
	categories CategoryLister
	refresher  Refresher
	engine     Engine
	seeder     Seeder
}

// NewCategoryWorker creates a worker. refresher may be nil, in which case
// events are handled by listing the store and applying the snapshot directly.
func NewCategoryWorker(categories CategoryLister, refresher Refresher, engine Engine, seeder Seeder) *CategoryWorker {
	return &CategoryWorker{
		categories: categories,
		refresher:  refresher,
		engine:     engine,
		seeder:     seeder,
	}
}

// Run consumes events until ctx is done.
func (w *CategoryWorker) Run(ctx context.Context, consumer EventConsumer) error {
	return consumer.ConsumeCategoryEvents(ctx, w.HandleCategoryEvent)
}

// HandleCategoryEvent processes a single category event from AMQP. A returned
// error requeues the event.
func (w *CategoryWorker) HandleCategoryEvent(ctx context.Context, ev *amqp.CategoryEvent) error {
	slog.InfoContext(ctx, "Processing category event",
		"kind", ev.Kind,
		"name", ev.Name,
		"origin", ev.Origin)

	if ev.Kind == amqp.CategoryDeleted {
		if _, err := w.engine.Forget(ctx, ev.Name); err != nil {
			return fmt.Errorf("forget %q: %w", ev.Name, err)
		}
	}

	if w.refresher != nil {
		if err := w.refresher.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh categories: %w", err)
		}
		return nil
	}

	cats, err := w.categories.List(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if _, err := w.engine.ApplySnapshot(ctx, cats); err != nil {
		return fmt.Errorf("apply snapshot: %w", err)
	}
	return nil
}

// SeedIfEmpty creates the default categories when the store has none.
func (w *CategoryWorker) SeedIfEmpty(ctx context.Context) error {
	cats, err := w.categories.List(ctx)
	if err != nil {
		return fmt.Errorf("check categories: %w", err)
	}
	if len(cats) > 0 {
		slog.InfoContext(ctx, "Categories present, skipping seed", "count", len(cats))
		return nil
	}
	if w.seeder == nil {
		return nil
	}

	created, err := w.seeder.SeedDefaults(ctx)
	if err != nil {
		return fmt.Errorf("seed default categories: %w", err)
	}
	slog.InfoContext(ctx, "Seeded default categories", "count", len(created))
	return nil
}
