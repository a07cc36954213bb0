package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pantry/internal/core"
	applog "pantry/internal/log"
	"pantry/internal/merger"
	"pantry/internal/pending"
	"pantry/internal/reconcile"
	"pantry/internal/recognition"
	"pantry/internal/store"
)

// DefaultCategories are created when the category store is empty.
var DefaultCategories = []string{"Fruits", "Vegetables", "Dairy", "Meat", "Grains"}

// Reconciler is the part of the reconciliation engine the service needs.
type Reconciler interface {
	Resolve(ctx context.Context, names []string) (reconcile.Result, error)
	Forget(ctx context.Context, names ...string) (reconcile.Result, error)
}

// Recognizer calls the external recognition endpoints.
type Recognizer interface {
	Recognize(ctx context.Context, imageURL string) ([]core.RecognizedItem, int, error)
	Interpret(ctx context.Context, transcript string) ([]core.Operation, int, error)
}

var (
	_ Reconciler = (*reconcile.Engine)(nil)
	_ Recognizer = (*recognition.Client)(nil)
)

// PantryService orchestrates categories, items and recognition batches.
// Every color lookup goes through the reconciler so that allocation stays
// serialized with remote snapshots.
type PantryService struct {
	categories store.CategoryStore
	items      store.ItemStore
	engine     Reconciler
	colors     merger.ColorSource
	recognizer Recognizer
	batches    *pending.Store
}

func NewPantryService(
	categories store.CategoryStore,
	items store.ItemStore,
	engine Reconciler,
	colors merger.ColorSource,
	recognizer Recognizer,
	batches *pending.Store,
) *PantryService {
	if batches == nil {
		batches = pending.NewStore(0, 0)
	}
	return &PantryService{
		categories: categories,
		items:      items,
		engine:     engine,
		colors:     colors,
		recognizer: recognizer,
		batches:    batches,
	}
}

// ListCategories returns the remote categories with their resolved colors.
func (s *PantryService) ListCategories(ctx context.Context) ([]core.Category, error) {
	cats, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	res, err := s.engine.Resolve(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolve category colors: %w", err)
	}
	out := make([]core.Category, 0, len(cats))
	for _, c := range cats {
		c.Color = res.Colors[c.Name]
		out = append(out, c)
	}
	return out, nil
}

// CreateCategory adds a category unless one with the same name exists, in
// which case the existing entry is returned with created=false. An empty
// color is resolved through the engine.
func (s *PantryService) CreateCategory(ctx context.Context, name, color string) (core.Category, bool, error) {
	c := core.Category{Name: strings.TrimSpace(name), Color: strings.TrimSpace(color)}
	if err := c.Validate(); err != nil {
		return core.Category{}, false, err
	}

	if existing, ok, err := s.findCategory(ctx, c.Name); err != nil {
		return core.Category{}, false, err
	} else if ok {
		return existing, false, nil
	}

	if c.Color == "" {
		res, err := s.engine.Resolve(ctx, []string{c.Name})
		if err != nil {
			return core.Category{}, false, fmt.Errorf("resolve category color: %w", err)
		}
		c.Color = res.Colors[c.Name]
	}

	if err := s.categories.Add(ctx, c); err != nil {
		if errors.Is(err, core.ErrDuplicateCategoryName) {
			// Lost a race with another writer; use their entry.
			existing, ok, ferr := s.findCategory(ctx, c.Name)
			if ferr == nil && ok {
				return existing, false, nil
			}
		}
		return core.Category{}, false, fmt.Errorf("%w: add category %q: %v", core.ErrRemoteWrite, c.Name, err)
	}

	slog.InfoContext(ctx, "Category created", applog.NewFields().WithCategory(c.Name, c.Color).ToSlice()...)
	return c, true, nil
}

func (s *PantryService) findCategory(ctx context.Context, name string) (core.Category, bool, error) {
	existing, ok, err := s.categories.FindByName(ctx, name)
	if err != nil {
		return core.Category{}, false, fmt.Errorf("find category %q: %w", name, err)
	}
	return existing, ok, nil
}

// DeleteCategory removes the category remotely and then from the local cache.
func (s *PantryService) DeleteCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	if err := s.categories.Delete(ctx, name); err != nil {
		return fmt.Errorf("%w: delete category %q: %v", core.ErrRemoteWrite, name, err)
	}
	if _, err := s.engine.Forget(ctx, name); err != nil {
		return fmt.Errorf("forget category color: %w", err)
	}
	slog.InfoContext(ctx, "Category deleted", "name", name)
	return nil
}

// SeedDefaults creates DefaultCategories that do not exist yet and returns
// the ones it created.
func (s *PantryService) SeedDefaults(ctx context.Context) ([]core.Category, error) {
	var created []core.Category
	for _, name := range DefaultCategories {
		c, isNew, err := s.CreateCategory(ctx, name, "")
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", name, err)
		}
		if isNew {
			created = append(created, c)
		}
	}
	if len(created) > 0 {
		slog.InfoContext(ctx, "Seeded default categories", "count", len(created))
	}
	return created, nil
}

// ListItems returns all items with category colors resolved for display.
func (s *PantryService) ListItems(ctx context.Context) ([]core.Item, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return s.colorize(ctx, items)
}

// SearchItems filters by case-insensitive name substring and exact category
// name. Empty criteria match everything.
func (s *PantryService) SearchItems(ctx context.Context, query, category string) ([]core.Item, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	category = strings.TrimSpace(category)

	out := make([]core.Item, 0, len(items))
	for _, it := range items {
		if query != "" && !strings.Contains(strings.ToLower(it.Name), query) {
			continue
		}
		if category != "" && !it.HasCategory(category) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *PantryService) colorize(ctx context.Context, items []core.Item) ([]core.Item, error) {
	var names []string
	for _, it := range items {
		names = append(names, it.CategoryNames()...)
	}
	if len(names) == 0 {
		return items, nil
	}
	res, err := s.engine.Resolve(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolve category colors: %w", err)
	}
	for i := range items {
		for j, c := range items[i].Categories {
			items[i].Categories[j].Color = res.Colors[c.Name]
		}
	}
	return items, nil
}

// ItemInput is a user-supplied item before category resolution.
type ItemInput struct {
	Name              string   `json:"name"`
	Amount            string   `json:"amount"`
	Categories        []string `json:"categories"`
	PersistCategories bool     `json:"persistCategories"`
}

// ItemResult reports how an item was stored.
type ItemResult struct {
	Action merger.ActionKind `json:"action"`
	Item   core.Item         `json:"item"`
}

// AddItem resolves categories and accumulates into an existing item with the
// same name, or creates a new one.
func (s *PantryService) AddItem(ctx context.Context, in ItemInput) (ItemResult, error) {
	it := core.Item{Name: in.Name, Amount: in.Amount}
	it.Normalize()
	if err := it.Validate(); err != nil {
		return ItemResult{}, err
	}

	resolved, err := s.resolveCategories(ctx, in.Categories)
	if err != nil {
		return ItemResult{}, err
	}
	it.Categories = resolved

	if in.PersistCategories {
		if _, err := s.persistCategories(ctx, resolved); err != nil {
			return ItemResult{}, err
		}
	}
	return s.mergeAndSave(ctx, it)
}

// EditItem fully replaces name, amount and categories of an item.
func (s *PantryService) EditItem(ctx context.Context, id string, in ItemInput) (core.Item, error) {
	it, err := s.items.GetItem(ctx, id)
	if err != nil {
		return core.Item{}, err
	}
	it.Name, it.Amount = in.Name, in.Amount
	it.Normalize()
	if err := it.Validate(); err != nil {
		return core.Item{}, err
	}

	resolved, err := s.resolveCategories(ctx, in.Categories)
	if err != nil {
		return core.Item{}, err
	}
	it.Categories = resolved

	if in.PersistCategories {
		if _, err := s.persistCategories(ctx, resolved); err != nil {
			return core.Item{}, err
		}
	}
	if err := s.items.UpdateItem(ctx, it); err != nil {
		return core.Item{}, s.wrapItemWrite("update item", err)
	}
	return it, nil
}

func (s *PantryService) DeleteItem(ctx context.Context, id string) error {
	if err := s.items.DeleteItem(ctx, id); err != nil {
		return s.wrapItemWrite("delete item", err)
	}
	return nil
}

// resolveCategories runs one reconciliation pass for raw names and maps them
// to categories.
func (s *PantryService) resolveCategories(ctx context.Context, raw []string) ([]core.Category, error) {
	names := trimNames(raw)
	if len(names) == 0 {
		return nil, nil
	}
	res, err := s.engine.Resolve(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("resolve categories: %w", err)
	}
	// The pass already allocated every name, so the merger only looks up.
	resolved, _ := merger.ResolveItemCategories(names, res.Colors.Clone(), s.colors)
	return resolved, nil
}

// persistCategories writes every category missing from the remote store,
// whether its color was allocated now or by an earlier request. It returns
// the categories it added.
func (s *PantryService) persistCategories(ctx context.Context, cats []core.Category) ([]core.Category, error) {
	var added []core.Category
	seen := make(map[string]bool, len(cats))
	for _, c := range cats {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true

		if _, ok, err := s.findCategory(ctx, c.Name); err != nil {
			return added, err
		} else if ok {
			continue
		}
		err := s.categories.Add(ctx, c)
		if errors.Is(err, core.ErrDuplicateCategoryName) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("%w: add category %q: %v", core.ErrRemoteWrite, c.Name, err)
		}
		slog.InfoContext(ctx, "Category persisted", applog.NewFields().WithCategory(c.Name, c.Color).ToSlice()...)
		added = append(added, c)
	}
	return added, nil
}

func (s *PantryService) mergeAndSave(ctx context.Context, it core.Item) (ItemResult, error) {
	existing, err := s.items.FindItemsByName(ctx, it.Name)
	if err != nil {
		return ItemResult{}, fmt.Errorf("find items by name: %w", err)
	}

	action := merger.MergeItemByName(existing, it)
	switch action.Kind {
	case merger.Accumulate:
		if err := s.items.UpdateItem(ctx, action.Item); err != nil {
			return ItemResult{}, s.wrapItemWrite("accumulate item", err)
		}
		slog.InfoContext(ctx, "Item accumulated",
			applog.NewFields().WithItem(action.Item.ID, it.Name, action.Item.Amount).ToSlice()...)
		return ItemResult{Action: merger.Accumulate, Item: action.Item}, nil
	default:
		saved, err := s.items.CreateItem(ctx, action.Item)
		if err != nil {
			return ItemResult{}, s.wrapItemWrite("create item", err)
		}
		slog.InfoContext(ctx, "Item created",
			applog.NewFields().WithItem(saved.ID, saved.Name, saved.Amount).ToSlice()...)
		return ItemResult{Action: merger.Create, Item: saved}, nil
	}
}

func (s *PantryService) wrapItemWrite(op string, err error) error {
	if errors.Is(err, core.ErrItemNotFound) || errors.Is(err, core.ErrEmptyName) || errors.Is(err, core.ErrEmptyCategory) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", core.ErrRemoteWrite, op, err)
}
