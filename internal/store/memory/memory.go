package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pantry/internal/core"
	"pantry/internal/store"
)

var (
	_ store.CategoryStore = (*Store)(nil)
	_ store.ItemStore     = (*Store)(nil)
)

// Store keeps categories and items in process memory.
type Store struct {
	store.Broadcaster

	mu    sync.Mutex
	cats  []core.Category
	items []core.Item
	now   func() time.Time
}

func New(cats []core.Category) *Store {
	return &Store{cats: dedupe(cats), now: time.Now}
}

// NewFromFiles seeds categories from <base>/seed_categories.txt.
// Each line is "Name" or "Name,color"; blank lines and # comments are skipped.
func NewFromFiles(base string) *Store {
	return New(readSeed(filepath.Join(base, "seed_categories.txt")))
}

func (s *Store) Subscribe(_ context.Context, onChange func([]core.Category)) (func(), error) {
	unsub := s.Broadcaster.Add(onChange)
	onChange(s.snapshot())
	return unsub, nil
}

func (s *Store) Add(_ context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	for _, existing := range s.cats {
		if existing.Name == c.Name {
			s.mu.Unlock()
			return fmt.Errorf("add %q: %w", c.Name, core.ErrDuplicateCategoryName)
		}
	}
	s.cats = append(s.cats, c)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.Publish(snap)
	return nil
}

// Delete removes every category with the name. Unknown names are a no-op.
func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	kept := s.cats[:0]
	removed := false
	for _, c := range s.cats {
		if c.Name == name {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	s.cats = kept
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if removed {
		s.Publish(snap)
	}
	return nil
}

func (s *Store) FindByName(_ context.Context, name string) (core.Category, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cats {
		if c.Name == name {
			return c, true, nil
		}
	}
	return core.Category{}, false, nil
}

func (s *Store) List(_ context.Context) ([]core.Category, error) {
	return s.snapshot(), nil
}

func (s *Store) snapshot() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []core.Category {
	return append([]core.Category(nil), s.cats...)
}

func (s *Store) ListItems(_ context.Context) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, cloneItem(it))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) FindItemsByName(_ context.Context, name string) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Item
	for _, it := range s.items {
		if it.Name == name {
			out = append(out, cloneItem(it))
		}
	}
	return out, nil
}

func (s *Store) GetItem(_ context.Context, id string) (core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			return cloneItem(it), nil
		}
	}
	return core.Item{}, fmt.Errorf("get item %s: %w", id, core.ErrItemNotFound)
}

func (s *Store) CreateItem(_ context.Context, it core.Item) (core.Item, error) {
	if err := it.Validate(); err != nil {
		return core.Item{}, err
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, cloneItem(it))
	return cloneItem(it), nil
}

func (s *Store) UpdateItem(_ context.Context, it core.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == it.ID {
			if it.CreatedAt.IsZero() {
				it.CreatedAt = s.items[i].CreatedAt
			}
			s.items[i] = cloneItem(it)
			return nil
		}
	}
	return fmt.Errorf("update item %s: %w", it.ID, core.ErrItemNotFound)
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete item %s: %w", id, core.ErrItemNotFound)
}

func cloneItem(it core.Item) core.Item {
	it.Categories = append([]core.Category(nil), it.Categories...)
	return it
}

func readSeed(path string) []core.Category {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.Category
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, color, _ := strings.Cut(line, ",")
		out = append(out, core.Category{Name: strings.TrimSpace(name), Color: strings.TrimSpace(color)})
	}
	return out
}

// dedupe keeps the first category per exact name and preserves order.
func dedupe(in []core.Category) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		if c.Name == "" {
			continue
		}
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, c)
	}
	return out
}
