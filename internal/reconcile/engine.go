// Package reconcile serializes every category color reconciliation pass.
//
// A pass merges the local cache (L), the latest remote snapshot (R) and a set
// of newly seen names (N) into the resolved map M:
//
//	M = L; for c in R: M[c.Name] = c.Color; for n in N not in M: M[n] = allocate(n)
//
// and persists the delta back to the cache. Passes are queued on a single
// channel and executed one at a time by the run loop, so a racing snapshot
// waits behind the pass in flight and is never dropped.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"pantry/internal/core"
)

// ColorCache is the durable side of the color map.
type ColorCache interface {
	Load(ctx context.Context) (core.CategoryColorMap, error)
	Merge(ctx context.Context, updates map[string]*string) error
	Snapshot() core.CategoryColorMap
}

// Allocator picks colors for unseen names.
type Allocator interface {
	ColorFor(name string, known core.CategoryColorMap) (color string, created bool)
}

// SnapshotSource is anything that can stream category snapshots.
type SnapshotSource interface {
	Subscribe(ctx context.Context, onChange func([]core.Category)) (unsubscribe func(), err error)
}

// Result is the outcome of one pass.
type Result struct {
	// Colors is the full resolved map after the pass.
	Colors core.CategoryColorMap
	// Created lists names allocated during this pass, in request order.
	// They are candidates for a remote write; the engine never writes remotely.
	Created []core.Category
	// Changed counts cache entries touched by the pass.
	Changed int
}

// Category returns the resolved category for name.
func (r Result) Category(name string) (core.Category, bool) {
	color, ok := r.Colors[name]
	return core.Category{Name: name, Color: color}, ok
}

// Config holds engine configuration
type Config struct {
	// QueueSize bounds the number of passes waiting behind the one in flight (default: 64)
	QueueSize int
}

func DefaultConfig() Config {
	return Config{QueueSize: 64}
}

type passKind int

const (
	passSnapshot passKind = iota
	passResolve
	passForget
)

func (k passKind) String() string {
	switch k {
	case passSnapshot:
		return "snapshot"
	case passResolve:
		return "resolve"
	case passForget:
		return "forget"
	}
	return "unknown"
}

type request struct {
	ctx    context.Context
	kind   passKind
	remote []core.Category
	names  []string
	reply  chan reply
}

type reply struct {
	res Result
	err error
}

// Engine is the single entry point for category color reconciliation.
type Engine struct {
	cache  ColorCache
	alloc  Allocator
	config Config

	requests chan request

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// Owned by the run loop.
	loaded   bool
	fallback core.CategoryColorMap
	remote   []core.Category

	degraded atomic.Bool
	passes   atomic.Int64
}

func NewEngine(cache ColorCache, alloc Allocator, config Config) *Engine {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	return &Engine{
		cache:    cache,
		alloc:    alloc,
		config:   config,
		requests: make(chan request, config.QueueSize),
		fallback: core.CategoryColorMap{},
	}
}

// Start begins the run loop. Returns an error if already running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("reconciliation engine is already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	go e.runLoop(stopCh, doneCh)

	slog.InfoContext(ctx, "Reconciliation engine started", "queue_size", e.config.QueueSize)
	return nil
}

// Stop finishes the pass in flight, fails queued passes with
// core.ErrEngineStopped and waits for the loop to exit.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Reconciliation engine stopped", "passes", e.passes.Load())
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconciliation engine stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the run loop is active
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Degraded reports whether the engine has fallen back to an in-memory map.
func (e *Engine) Degraded() bool {
	return e.degraded.Load()
}

// Passes returns the number of completed passes.
func (e *Engine) Passes() int64 {
	return e.passes.Load()
}

// ApplySnapshot records cats as the latest remote snapshot and reconciles.
func (e *Engine) ApplySnapshot(ctx context.Context, cats []core.Category) (Result, error) {
	return e.submit(ctx, request{kind: passSnapshot, remote: cats})
}

// Resolve makes sure every name has a color, allocating the missing ones.
func (e *Engine) Resolve(ctx context.Context, names []string) (Result, error) {
	return e.submit(ctx, request{kind: passResolve, names: names})
}

// Forget drops names from the resolved map, the remote view and the cache.
func (e *Engine) Forget(ctx context.Context, names ...string) (Result, error) {
	return e.submit(ctx, request{kind: passForget, names: names})
}

// Watch subscribes to src and funnels every snapshot through ApplySnapshot.
func (e *Engine) Watch(ctx context.Context, src SnapshotSource) (func(), error) {
	return src.Subscribe(ctx, func(cats []core.Category) {
		if _, err := e.ApplySnapshot(ctx, cats); err != nil {
			slog.WarnContext(ctx, "Failed to apply category snapshot", "error", err, "categories", len(cats))
		}
	})
}

func (e *Engine) submit(ctx context.Context, req request) (Result, error) {
	e.mu.Lock()
	running := e.running
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()
	if !running {
		return Result{}, core.ErrEngineStopped
	}

	req.ctx = ctx
	req.reply = make(chan reply, 1)

	select {
	case e.requests <- req:
	case <-stopCh:
		return Result{}, core.ErrEngineStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-doneCh:
		// The loop replies before it exits, so a reply may already be waiting.
		select {
		case r := <-req.reply:
			return r.res, r.err
		default:
			return Result{}, core.ErrEngineStopped
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (e *Engine) runLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			e.drain()
			return
		case req := <-e.requests:
			res := e.pass(req)
			e.passes.Add(1)
			req.reply <- reply{res: res}
		}
	}
}

func (e *Engine) drain() {
	for {
		select {
		case req := <-e.requests:
			req.reply <- reply{err: core.ErrEngineStopped}
		default:
			return
		}
	}
}

// pass runs to completion even when the caller has gone away.
func (e *Engine) pass(req request) Result {
	ctx := context.WithoutCancel(req.ctx)

	m := e.baseline(ctx).Clone()
	delta := make(map[string]*string)
	set := func(name, color string) {
		m[name] = color
		c := color
		delta[name] = &c
	}

	switch req.kind {
	case passSnapshot:
		e.remote = uniqueByName(req.remote)
	case passForget:
		forget := make(map[string]struct{}, len(req.names))
		for _, name := range req.names {
			forget[name] = struct{}{}
			if _, ok := m[name]; ok {
				delete(m, name)
				delta[name] = nil
			}
		}
		kept := e.remote[:0:0]
		for _, c := range e.remote {
			if _, drop := forget[c.Name]; !drop {
				kept = append(kept, c)
			}
		}
		e.remote = kept
	}

	// Remote is authoritative for the names it knows. Entries without a
	// color are treated as unseen names.
	var pending []string
	for _, c := range e.remote {
		if c.Color == "" {
			pending = append(pending, c.Name)
			continue
		}
		if cur, ok := m[c.Name]; !ok || cur != c.Color {
			set(c.Name, c.Color)
		}
	}

	var created []core.Category
	if req.kind == passResolve {
		pending = append(pending, req.names...)
	}
	for _, name := range pending {
		if name == "" {
			continue
		}
		color, isNew := e.alloc.ColorFor(name, m)
		if !isNew {
			continue
		}
		set(name, color)
		created = append(created, core.Category{Name: name, Color: color})
	}

	e.persist(ctx, delta)
	e.fallback = m

	if len(delta) > 0 {
		slog.DebugContext(ctx, "Reconciliation pass applied",
			"kind", req.kind.String(),
			"changed", len(delta),
			"created", len(created),
			"degraded", e.degraded.Load())
	}

	return Result{Colors: m.Clone(), Created: created, Changed: len(delta)}
}

func (e *Engine) baseline(ctx context.Context) core.CategoryColorMap {
	if e.degraded.Load() {
		return e.fallback
	}
	if !e.loaded {
		m, err := e.cache.Load(ctx)
		if err != nil {
			e.degrade(ctx, "load", err)
			return e.fallback
		}
		e.loaded = true
		return m
	}
	return e.cache.Snapshot()
}

func (e *Engine) persist(ctx context.Context, delta map[string]*string) {
	if len(delta) == 0 || e.degraded.Load() {
		return
	}
	if err := e.cache.Merge(ctx, delta); err != nil {
		e.degrade(ctx, "merge", err)
	}
}

func (e *Engine) degrade(ctx context.Context, op string, err error) {
	if e.degraded.Swap(true) {
		return
	}
	slog.WarnContext(ctx, "Category cache unavailable, continuing with in-memory colors",
		"operation", op,
		"error", err)
}

func uniqueByName(in []core.Category) []core.Category {
	seen := make(map[string]int, len(in))
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		if c.Name == "" {
			continue
		}
		// Later duplicates win, matching last-writer-wins on the snapshot.
		if i, ok := seen[c.Name]; ok {
			out[i] = c
			continue
		}
		seen[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}
