package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pantry/internal/core"
	"pantry/internal/reconcile"
)

type staticLister struct {
	cats []core.Category
	err  error
}

func (l staticLister) List(context.Context) ([]core.Category, error) {
	return l.cats, l.err
}

type recordingApplier struct {
	mu        sync.Mutex
	snapshots [][]core.Category
}

func (a *recordingApplier) ApplySnapshot(_ context.Context, cats []core.Category) (reconcile.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots = append(a.snapshots, cats)
	return reconcile.Result{Changed: len(cats)}, nil
}

func (a *recordingApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.snapshots)
}

func TestDefaultRefreshProcessorConfig(t *testing.T) {
	config := DefaultRefreshProcessorConfig()

	if config.Interval != time.Minute {
		t.Errorf("expected Interval 1m, got %v", config.Interval)
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("expected Timeout 30s, got %v", config.Timeout)
	}

	p := NewRefreshProcessor(nil, nil, RefreshProcessorConfig{})
	if p.config != config {
		t.Errorf("zero config should fall back to defaults, got %+v", p.config)
	}
}

func TestRefreshProcessor_RefreshNow(t *testing.T) {
	applier := &recordingApplier{}
	p := NewRefreshProcessor(staticLister{cats: []core.Category{{Name: "Fruits", Color: "red"}}}, applier, DefaultRefreshProcessorConfig())

	res, err := p.RefreshNow(context.Background())
	if err != nil {
		t.Fatalf("RefreshNow() error = %v", err)
	}
	if res.Changed != 1 || applier.count() != 1 {
		t.Errorf("RefreshNow() = %+v, applied %d", res, applier.count())
	}

	failing := NewRefreshProcessor(staticLister{err: errors.New("offline")}, applier, DefaultRefreshProcessorConfig())
	if _, err := failing.RefreshNow(context.Background()); err == nil {
		t.Error("RefreshNow() should fail when the store cannot be listed")
	}
	if applier.count() != 1 {
		t.Error("a failed list must not apply a snapshot")
	}
}

func TestRefreshProcessor_Lifecycle(t *testing.T) {
	applier := &recordingApplier{}
	p := NewRefreshProcessor(staticLister{}, applier, RefreshProcessorConfig{Interval: 10 * time.Millisecond})

	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	deadline := time.Now().Add(2 * time.Second)
	for applier.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if applier.count() < 2 {
		t.Fatalf("expected periodic refreshes, got %d", applier.count())
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}
