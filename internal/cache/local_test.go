package cache

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"pantry/internal/core"
)

// failingBlobStore fails reads and/or writes on demand.
type failingBlobStore struct {
	*MemoryBlobStore
	failRead  bool
	failWrite bool
	writes    int
}

func (s *failingBlobStore) ReadBlob(ctx context.Context, key string) ([]byte, error) {
	if s.failRead {
		return nil, errors.New("storage disabled")
	}
	return s.MemoryBlobStore.ReadBlob(ctx, key)
}

func (s *failingBlobStore) WriteBlob(ctx context.Context, key string, data []byte) error {
	s.writes++
	if s.failWrite {
		return errors.New("quota exceeded")
	}
	return s.MemoryBlobStore.WriteBlob(ctx, key, data)
}

func ptr(s string) *string { return &s }

func TestLocal_LoadMissingBlob(t *testing.T) {
	c := NewLocal(NewMemoryBlobStore())
	got, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Load() = %v, want empty", got)
	}
}

func TestLocal_LoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		blob string
		want core.CategoryColorMap
	}{
		{"not json", "{{{", core.CategoryColorMap{}},
		{"json array", `["a","b"]`, core.CategoryColorMap{}},
		{"json string", `"hello"`, core.CategoryColorMap{}},
		{
			name: "bad entries dropped",
			blob: `{"Dairy":"yellow","Meat":42,"Grains":"","Fruits":{"c":"x"},"Veg":"hsl(1, 70%, 55%)"}`,
			want: core.CategoryColorMap{"Dairy": "yellow", "Veg": "hsl(1, 70%, 55%)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryBlobStore()
			_ = store.WriteBlob(ctx, DefaultKey, []byte(tt.blob))

			got, err := NewLocal(store).Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Load() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLocal_LoadFailure(t *testing.T) {
	c := NewLocal(&failingBlobStore{MemoryBlobStore: NewMemoryBlobStore(), failRead: true})
	_, err := c.Load(context.Background())
	if !errors.Is(err, core.ErrCacheUnavailable) {
		t.Fatalf("Load() error = %v, want ErrCacheUnavailable", err)
	}
}

func TestLocal_MergeUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	c := NewLocal(store)

	if err := c.Merge(ctx, map[string]*string{"Dairy": ptr("yellow"), "Meat": ptr("red")}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if err := c.Merge(ctx, map[string]*string{"Meat": nil, "Fruits": ptr("blue")}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	want := core.CategoryColorMap{"Dairy": "yellow", "Fruits": "blue"}
	if got := c.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}

	// A fresh cache over the same store sees the persisted state.
	reloaded, err := NewLocal(store).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(reloaded, want) {
		t.Errorf("reloaded = %v, want %v", reloaded, want)
	}
}

func TestLocal_MergeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	c := NewLocal(store)
	delta := map[string]*string{"Dairy": ptr("hsl(50, 80%, 60%)"), "Gone": nil}

	if err := c.Merge(ctx, delta); err != nil {
		t.Fatal(err)
	}
	once, _ := store.ReadBlob(ctx, DefaultKey)

	if err := c.Merge(ctx, delta); err != nil {
		t.Fatal(err)
	}
	twice, _ := store.ReadBlob(ctx, DefaultKey)

	if string(once) != string(twice) {
		t.Errorf("second merge changed blob: %s vs %s", once, twice)
	}
}

func TestLocal_MergePreservesUnloadedDurableState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	_ = store.WriteBlob(ctx, DefaultKey, []byte(`{"Dairy":"yellow"}`))

	c := NewLocal(store)
	if err := c.Merge(ctx, map[string]*string{"Meat": ptr("red")}); err != nil {
		t.Fatal(err)
	}
	want := core.CategoryColorMap{"Dairy": "yellow", "Meat": "red"}
	if got := c.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
}

func TestLocal_MergeFailureIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := &failingBlobStore{MemoryBlobStore: NewMemoryBlobStore()}
	c := NewLocal(store)

	if err := c.Merge(ctx, map[string]*string{"Dairy": ptr("yellow")}); err != nil {
		t.Fatal(err)
	}

	store.failWrite = true
	err := c.Merge(ctx, map[string]*string{"Meat": ptr("red"), "Dairy": nil})
	if !errors.Is(err, core.ErrCacheUnavailable) {
		t.Fatalf("Merge() error = %v, want ErrCacheUnavailable", err)
	}

	want := core.CategoryColorMap{"Dairy": "yellow"}
	if got := c.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() after failed merge = %v, want %v", got, want)
	}
	persisted, _ := store.MemoryBlobStore.ReadBlob(ctx, DefaultKey)
	if string(persisted) != `{"Dairy":"yellow"}` {
		t.Errorf("persisted = %s", persisted)
	}
}

func TestLocal_EmptyMergeSkipsWrite(t *testing.T) {
	store := &failingBlobStore{MemoryBlobStore: NewMemoryBlobStore()}
	c := NewLocal(store)
	if err := c.Merge(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if store.writes != 0 {
		t.Errorf("writes = %d, want 0", store.writes)
	}
}

func TestFileBlobStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadBlob(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("ReadBlob(missing) = %q, %v", got, err)
	}

	if err := s.WriteBlob(ctx, DefaultKey, []byte(`{"a":"b"}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteBlob(ctx, DefaultKey, []byte(`{"a":"c"}`)); err != nil {
		t.Fatal(err)
	}
	got, err = s.ReadBlob(ctx, DefaultKey)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":"c"}` {
		t.Errorf("ReadBlob() = %s", got)
	}

	c := NewLocal(s)
	m, err := c.Load(ctx)
	if err != nil || m["a"] != "c" {
		t.Errorf("Load() over file store = %v, %v", m, err)
	}
}
