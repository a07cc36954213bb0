package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pantry/internal/core"
	"pantry/internal/reconcile"
)

// CategoryLister reads the full remote category set.
type CategoryLister interface {
	List(ctx context.Context) ([]core.Category, error)
}

// SnapshotApplier runs a reconciliation pass over a remote snapshot.
type SnapshotApplier interface {
	ApplySnapshot(ctx context.Context, cats []core.Category) (reconcile.Result, error)
}

// RefreshProcessorConfig holds configuration for the refresh processor
type RefreshProcessorConfig struct {
	// Interval is how often the remote store is re-read (default: 1m)
	Interval time.Duration

	// Timeout bounds a single refresh (default: 30s)
	Timeout time.Duration
}

func DefaultRefreshProcessorConfig() RefreshProcessorConfig {
	return RefreshProcessorConfig{
		Interval: time.Minute,
		Timeout:  30 * time.Second,
	}
}

// RefreshProcessor periodically feeds a full remote snapshot to the engine.
// It covers missed subscription events and stores that only poll.
type RefreshProcessor struct {
	source CategoryLister
	engine SnapshotApplier
	config RefreshProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRefreshProcessor(source CategoryLister, engine SnapshotApplier, config RefreshProcessorConfig) *RefreshProcessor {
	def := DefaultRefreshProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &RefreshProcessor{source: source, engine: engine, config: config}
}

// Start begins the refresh loop. Returns an error if already running.
func (p *RefreshProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("refresh processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Refresh processor started", "interval", p.config.Interval)
	return nil
}

// Stop stops the processor and waits for the loop to exit.
func (p *RefreshProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Refresh processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Refresh processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *RefreshProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RefreshProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.refreshLogged(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshLogged(ctx)
		}
	}
}

func (p *RefreshProcessor) refreshLogged(ctx context.Context) {
	if _, err := p.RefreshNow(ctx); err != nil {
		slog.WarnContext(ctx, "Category refresh failed", "error", err)
	}
}

// RefreshNow lists the remote store and applies the snapshot immediately.
func (p *RefreshProcessor) RefreshNow(ctx context.Context) (reconcile.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	cats, err := p.source.List(ctx)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("list categories: %w", err)
	}
	res, err := p.engine.ApplySnapshot(ctx, cats)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("apply snapshot: %w", err)
	}
	slog.DebugContext(ctx, "Categories refreshed", "remote", len(cats), "changed", res.Changed)
	return res, nil
}
