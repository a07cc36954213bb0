// Package cache implements the process-local durable category color cache.
//
// The whole map is stored as one JSON blob ({"name": "color"}) under a single
// key. Every Merge rewrites the blob in one write, so a batch is either fully
// persisted or not at all.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"pantry/internal/core"
)

// DefaultKey is the blob key the color map is stored under.
const DefaultKey = "categoryColors"

// Local is the durable category color cache. Safe for concurrent use.
type Local struct {
	store  BlobStore
	key    string
	mu     sync.Mutex
	view   core.CategoryColorMap
	loaded bool
}

// NewLocal creates a cache over store using DefaultKey.
func NewLocal(store BlobStore) *Local {
	return NewLocalWithKey(store, DefaultKey)
}

func NewLocalWithKey(store BlobStore, key string) *Local {
	return &Local{
		store: store,
		key:   key,
		view:  core.CategoryColorMap{},
	}
}

// Load reads the durable blob and replaces the in-memory view.
// A missing or non-JSON blob yields an empty map. Entries whose value is not a
// non-empty string are dropped. Only a failing BlobStore returns an error.
func (c *Local) Load(ctx context.Context) (core.CategoryColorMap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return core.CategoryColorMap{}, err
	}
	return c.view.Clone(), nil
}

func (c *Local) loadLocked(ctx context.Context) error {
	data, err := c.store.ReadBlob(ctx, c.key)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", core.ErrCacheUnavailable, c.key, err)
	}
	c.view = Decode(ctx, data)
	c.loaded = true
	return nil
}

// Merge applies updates to the durable map. A nil value deletes the name,
// anything else upserts it. On failure the in-memory view is left unchanged.
func (c *Local) Merge(ctx context.Context, updates map[string]*string) error {
	if len(updates) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		if err := c.loadLocked(ctx); err != nil {
			return err
		}
	}

	next := c.view.Clone()
	for name, color := range updates {
		if color == nil {
			delete(next, name)
			continue
		}
		next[name] = *color
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", core.ErrCacheUnavailable, err)
	}
	if err := c.store.WriteBlob(ctx, c.key, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", core.ErrCacheUnavailable, c.key, err)
	}

	c.view = next
	return nil
}

// Snapshot returns a copy of the in-memory view without touching the blob store.
func (c *Local) Snapshot() core.CategoryColorMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Clone()
}

// Decode parses a cache blob, tolerating any malformed content.
func Decode(ctx context.Context, data []byte) core.CategoryColorMap {
	out := core.CategoryColorMap{}
	if len(data) == 0 {
		return out
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.WarnContext(ctx, "Discarding malformed category cache blob", "error", err, "size", len(data))
		return out
	}

	dropped := 0
	for name, v := range raw {
		var color string
		if err := json.Unmarshal(v, &color); err != nil || color == "" || name == "" {
			dropped++
			continue
		}
		out[name] = color
	}
	if dropped > 0 {
		slog.WarnContext(ctx, "Dropped malformed category cache entries", "dropped", dropped, "kept", len(out))
	}
	return out
}
