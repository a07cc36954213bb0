package store

import (
	"context"

	"pantry/internal/core"
)

// Ports for outbound adapters.
type (
	// CategoryStore is the shared remote category collection.
	CategoryStore interface {
		// Subscribe delivers the current snapshot and then one snapshot per change
		// until unsubscribe is called or ctx ends.
		Subscribe(ctx context.Context, onChange func([]core.Category)) (unsubscribe func(), err error)
		// Add fails with core.ErrDuplicateCategoryName when the name exists.
		Add(ctx context.Context, c core.Category) error
		Delete(ctx context.Context, name string) error
		FindByName(ctx context.Context, name string) (core.Category, bool, error)
		List(ctx context.Context) ([]core.Category, error)
	}

	// ItemStore persists pantry items.
	ItemStore interface {
		ListItems(ctx context.Context) ([]core.Item, error)
		FindItemsByName(ctx context.Context, name string) ([]core.Item, error)
		GetItem(ctx context.Context, id string) (core.Item, error)
		// CreateItem assigns an ID when the item has none.
		CreateItem(ctx context.Context, it core.Item) (core.Item, error)
		// UpdateItem fails with core.ErrItemNotFound for unknown IDs.
		UpdateItem(ctx context.Context, it core.Item) error
		DeleteItem(ctx context.Context, id string) error
	}
)
