package worker

import (
	"context"
	"errors"
	"testing"

	"pantry/internal/amqp"
	"pantry/internal/core"
	"pantry/internal/reconcile"
)

type fakeEngine struct {
	forgotten []string
	snapshots [][]core.Category
	err       error
}

func (e *fakeEngine) ApplySnapshot(_ context.Context, cats []core.Category) (reconcile.Result, error) {
	e.snapshots = append(e.snapshots, cats)
	return reconcile.Result{}, e.err
}

func (e *fakeEngine) Forget(_ context.Context, names ...string) (reconcile.Result, error) {
	e.forgotten = append(e.forgotten, names...)
	return reconcile.Result{}, e.err
}

type fakeLister struct {
	cats []core.Category
	err  error
}

func (l *fakeLister) List(context.Context) ([]core.Category, error) { return l.cats, l.err }

type countingRefresher struct {
	calls int
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls++
	return r.err
}

type fakeSeeder struct{ calls int }

func (s *fakeSeeder) SeedDefaults(context.Context) ([]core.Category, error) {
	s.calls++
	return []core.Category{{Name: "Fruits"}}, nil
}

type fakeConsumer struct{ events []*amqp.CategoryEvent }

func (c *fakeConsumer) ConsumeCategoryEvents(ctx context.Context, handler func(context.Context, *amqp.CategoryEvent) error) error {
	for _, ev := range c.events {
		if err := handler(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func TestCategoryWorker_HandleCategoryEvent(t *testing.T) {
	tests := []struct {
		name          string
		event         *amqp.CategoryEvent
		withRefresher bool
		wantForgotten int
		wantSnapshots int
		wantRefreshes int
	}{
		{"added with refresher", amqp.NewCategoryEvent(amqp.CategoryAdded, "Fruits", "red", "a"), true, 0, 0, 1},
		{"deleted with refresher", amqp.NewCategoryEvent(amqp.CategoryDeleted, "Fruits", "", "a"), true, 1, 0, 1},
		{"added without refresher", amqp.NewCategoryEvent(amqp.CategoryAdded, "Fruits", "red", "a"), false, 0, 1, 0},
		{"deleted without refresher", amqp.NewCategoryEvent(amqp.CategoryDeleted, "Fruits", "", "a"), false, 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{}
			refresher := &countingRefresher{}
			var r Refresher
			if tt.withRefresher {
				r = refresher
			}
			w := NewCategoryWorker(&fakeLister{cats: []core.Category{{Name: "Dairy"}}}, r, engine, nil)

			if err := w.HandleCategoryEvent(context.Background(), tt.event); err != nil {
				t.Fatalf("HandleCategoryEvent() error = %v", err)
			}
			if len(engine.forgotten) != tt.wantForgotten {
				t.Errorf("forgotten = %v, want %d", engine.forgotten, tt.wantForgotten)
			}
			if len(engine.snapshots) != tt.wantSnapshots {
				t.Errorf("snapshots = %d, want %d", len(engine.snapshots), tt.wantSnapshots)
			}
			if refresher.calls != tt.wantRefreshes {
				t.Errorf("refreshes = %d, want %d", refresher.calls, tt.wantRefreshes)
			}
		})
	}
}

func TestCategoryWorker_ErrorsRequeue(t *testing.T) {
	ev := amqp.NewCategoryEvent(amqp.CategoryAdded, "Fruits", "", "a")

	w := NewCategoryWorker(&fakeLister{}, &countingRefresher{err: errors.New("sheet offline")}, &fakeEngine{}, nil)
	if err := w.HandleCategoryEvent(context.Background(), ev); err == nil {
		t.Error("a refresh failure should be returned so the event is requeued")
	}

	w = NewCategoryWorker(&fakeLister{err: errors.New("db locked")}, nil, &fakeEngine{}, nil)
	if err := w.HandleCategoryEvent(context.Background(), ev); err == nil {
		t.Error("a list failure should be returned")
	}

	w = NewCategoryWorker(&fakeLister{}, nil, &fakeEngine{err: core.ErrEngineStopped}, nil)
	if err := w.HandleCategoryEvent(context.Background(), ev); !errors.Is(err, core.ErrEngineStopped) {
		t.Errorf("error = %v, want ErrEngineStopped", err)
	}
}

func TestCategoryWorker_Run(t *testing.T) {
	engine := &fakeEngine{}
	w := NewCategoryWorker(&fakeLister{}, nil, engine, nil)
	consumer := &fakeConsumer{events: []*amqp.CategoryEvent{
		amqp.NewCategoryEvent(amqp.CategoryAdded, "Fruits", "", "a"),
		amqp.NewCategoryEvent(amqp.CategoryDeleted, "Meat", "", "b"),
	}}

	if err := w.Run(context.Background(), consumer); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(engine.snapshots) != 2 || len(engine.forgotten) != 1 || engine.forgotten[0] != "Meat" {
		t.Errorf("engine saw snapshots=%d forgotten=%v", len(engine.snapshots), engine.forgotten)
	}
}

func TestCategoryWorker_SeedIfEmpty(t *testing.T) {
	ctx := context.Background()

	seeder := &fakeSeeder{}
	w := NewCategoryWorker(&fakeLister{}, nil, &fakeEngine{}, seeder)
	if err := w.SeedIfEmpty(ctx); err != nil {
		t.Fatalf("SeedIfEmpty() error = %v", err)
	}
	if seeder.calls != 1 {
		t.Errorf("seeder calls = %d, want 1", seeder.calls)
	}

	seeder = &fakeSeeder{}
	w = NewCategoryWorker(&fakeLister{cats: []core.Category{{Name: "Dairy"}}}, nil, &fakeEngine{}, seeder)
	if err := w.SeedIfEmpty(ctx); err != nil {
		t.Fatalf("SeedIfEmpty() error = %v", err)
	}
	if seeder.calls != 0 {
		t.Error("a populated store must not be seeded")
	}
}
