package adapters

import (
	"context"
	"log/slog"

	"pantry/internal/amqp"
	"pantry/internal/core"
	"pantry/internal/store"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishCategoryEvent(ctx context.Context, ev *amqp.CategoryEvent) error
}

var _ store.CategoryStore = (*NotifyingCategoryStore)(nil)

// NotifyingCategoryStore adapts a CategoryStore so that successful writes are
// announced to other processes. Publish failures are logged and never fail
// the write; receivers also refresh periodically.
type NotifyingCategoryStore struct {
	store.CategoryStore
	publisher EventPublisher
	origin    string
}

func NewNotifyingCategoryStore(inner store.CategoryStore, publisher EventPublisher, origin string) *NotifyingCategoryStore {
	return &NotifyingCategoryStore{
		CategoryStore: inner,
		publisher:     publisher,
		origin:        origin,
	}
}

// Add implements store.CategoryStore
func (s *NotifyingCategoryStore) Add(ctx context.Context, c core.Category) error {
	if err := s.CategoryStore.Add(ctx, c); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewCategoryEvent(amqp.CategoryAdded, c.Name, c.Color, s.origin))
	return nil
}

// Delete implements store.CategoryStore
func (s *NotifyingCategoryStore) Delete(ctx context.Context, name string) error {
	if err := s.CategoryStore.Delete(ctx, name); err != nil {
		return err
	}
	s.publish(ctx, amqp.NewCategoryEvent(amqp.CategoryDeleted, name, "", s.origin))
	return nil
}

func (s *NotifyingCategoryStore) publish(ctx context.Context, ev *amqp.CategoryEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCategoryEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish category event",
			"error", err,
			"kind", ev.Kind,
			"name", ev.Name)
	}
}
