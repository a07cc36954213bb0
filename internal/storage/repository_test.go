package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"pantry/internal/cache"
	"pantry/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "pantry.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_Categories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.Add(ctx, core.Category{Name: "Fruits", Color: "hsl(10, 80%, 60%)"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := repo.Add(ctx, core.Category{Name: "Dairy"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	err := repo.Add(ctx, core.Category{Name: "Fruits", Color: "red"})
	if !errors.Is(err, core.ErrDuplicateCategoryName) {
		t.Fatalf("Add() duplicate error = %v, want ErrDuplicateCategoryName", err)
	}

	c, ok, err := repo.FindByName(ctx, "Fruits")
	if err != nil || !ok {
		t.Fatalf("FindByName() = %v, %v, %v", c, ok, err)
	}
	if c.Color != "hsl(10, 80%, 60%)" {
		t.Errorf("duplicate add overwrote color: %q", c.Color)
	}

	if _, ok, _ := repo.FindByName(ctx, "fruits"); ok {
		t.Error("FindByName() should be case-sensitive")
	}

	if err := repo.Delete(ctx, "Fruits"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "Missing"); err != nil {
		t.Errorf("Delete() of missing category error = %v", err)
	}

	cats, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(cats) != 1 || cats[0].Name != "Dairy" {
		t.Errorf("List() = %v, want [Dairy]", cats)
	}
}

func TestSQLiteRepository_SubscribeReceivesWrites(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	var (
		mu        sync.Mutex
		snapshots [][]core.Category
	)
	unsub, err := repo.Subscribe(ctx, func(cats []core.Category) {
		mu.Lock()
		snapshots = append(snapshots, cats)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := repo.Add(ctx, core.Category{Name: "Meat"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	unsub()
	if err := repo.Add(ctx, core.Category{Name: "Grains"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(snapshots) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snapshots))
	}
	if len(snapshots[0]) != 0 {
		t.Errorf("initial snapshot = %v, want empty", snapshots[0])
	}
	if len(snapshots[1]) != 1 || snapshots[1][0].Name != "Meat" {
		t.Errorf("second snapshot = %v, want [Meat]", snapshots[1])
	}
}

func TestSQLiteRepository_WriteStandsWhenRefreshFails(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	repo.list = func(context.Context) ([]core.Category, error) {
		return nil, errors.New("disk I/O error")
	}

	if err := repo.Add(ctx, core.Category{Name: "Spices", Color: "red"}); err != nil {
		t.Fatalf("Add() error = %v, want nil after a committed insert", err)
	}
	if _, ok, err := repo.FindByName(ctx, "Spices"); err != nil || !ok {
		t.Fatalf("FindByName() = %v, %v; want the inserted row", ok, err)
	}

	if err := repo.Delete(ctx, "Spices"); err != nil {
		t.Fatalf("Delete() error = %v, want nil after a committed delete", err)
	}
	if _, ok, _ := repo.FindByName(ctx, "Spices"); ok {
		t.Error("Spices should be gone")
	}

	if err := repo.Refresh(ctx); err == nil {
		t.Error("Refresh() should still report the failing read")
	}
}

func TestSQLiteRepository_Items(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateItem(ctx, core.Item{
		Name:       "Milk",
		Amount:     "2",
		Categories: []core.Category{{Name: "Dairy", Color: "hsl(200, 75%, 58%)"}},
	})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("CreateItem() did not assign id/createdAt: %+v", created)
	}

	got, err := repo.GetItem(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.Name != "Milk" || got.Amount != "2" || len(got.Categories) != 1 || got.Categories[0].Name != "Dairy" {
		t.Errorf("GetItem() = %+v", got)
	}

	got.Amount = "5"
	if err := repo.UpdateItem(ctx, got); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	byName, err := repo.FindItemsByName(ctx, "Milk")
	if err != nil {
		t.Fatalf("FindItemsByName() error = %v", err)
	}
	if len(byName) != 1 || byName[0].Amount != "5" {
		t.Errorf("FindItemsByName() = %+v", byName)
	}

	if err := repo.DeleteItem(ctx, created.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := repo.GetItem(ctx, created.ID); !errors.Is(err, core.ErrItemNotFound) {
		t.Errorf("GetItem() after delete error = %v, want ErrItemNotFound", err)
	}
	if err := repo.UpdateItem(ctx, got); !errors.Is(err, core.ErrItemNotFound) {
		t.Errorf("UpdateItem() of missing item error = %v, want ErrItemNotFound", err)
	}
}

func TestSQLiteRepository_BacksColorCache(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if data, err := repo.ReadBlob(ctx, cache.DefaultKey); err != nil || data != nil {
		t.Fatalf("ReadBlob() on empty db = %q, %v", data, err)
	}

	local := cache.NewLocal(repo)
	red := "red"
	if err := local.Merge(ctx, map[string]*string{"Fruits": &red}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	reopened := cache.NewLocal(repo)
	m, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m["Fruits"] != "red" {
		t.Errorf("Load() = %v, want Fruits=red", m)
	}
}

func TestRunMigrations_ReportsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pantry.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	repo.Close()

	v, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if v == 0 {
		t.Error("RunMigrations() version = 0, want the latest migration")
	}

	again, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
	if again != v {
		t.Errorf("second RunMigrations() version = %d, want %d", again, v)
	}
}
