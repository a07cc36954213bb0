package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pantry/internal/cache"
	"pantry/internal/core"
	"pantry/internal/store"

	_ "modernc.org/sqlite"
)

var (
	_ store.CategoryStore = (*SQLiteRepository)(nil)
	_ store.ItemStore     = (*SQLiteRepository)(nil)
	_ cache.BlobStore     = (*SQLiteRepository)(nil)
)

const timeLayout = time.RFC3339Nano

// SQLiteRepository stores categories, items and cache blobs in one SQLite file.
// Category subscribers are notified of local writes and of Refresh calls.
type SQLiteRepository struct {
	store.Broadcaster

	db  *sql.DB
	now func() time.Time
	// list feeds Refresh; swapped in tests.
	list func(context.Context) ([]core.Category, error)
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps SQLite free of SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db, now: time.Now}
	repo.list = repo.List
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Subscribe implements store.CategoryStore
func (r *SQLiteRepository) Subscribe(ctx context.Context, onChange func([]core.Category)) (func(), error) {
	cats, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	unsub := r.Broadcaster.Add(onChange)
	onChange(cats)
	return unsub, nil
}

// Refresh re-reads categories and notifies subscribers. Used when another
// process reports a change.
func (r *SQLiteRepository) Refresh(ctx context.Context) error {
	cats, err := r.list(ctx)
	if err != nil {
		return err
	}
	r.Publish(cats)
	return nil
}

// notifyWrite refreshes subscribers after a committed write. The write stands
// even when the refresh fails; the next Refresh or write catches them up.
func (r *SQLiteRepository) notifyWrite(ctx context.Context, op, name string) {
	if err := r.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "Category refresh after write failed",
			"operation", op,
			"name", name,
			"error", err)
	}
}

// Add implements store.CategoryStore
func (r *SQLiteRepository) Add(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, color, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		c.Name, c.Color, r.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert category rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("add %q: %w", c.Name, core.ErrDuplicateCategoryName)
	}

	slog.InfoContext(ctx, "Category saved to SQLite", "name", c.Name, "color", c.Color)
	r.notifyWrite(ctx, "add", c.Name)
	return nil
}

// Delete implements store.CategoryStore
func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	slog.InfoContext(ctx, "Category deleted from SQLite", "name", name)
	r.notifyWrite(ctx, "delete", name)
	return nil
}

// FindByName implements store.CategoryStore
func (r *SQLiteRepository) FindByName(ctx context.Context, name string) (core.Category, bool, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `SELECT name, color FROM categories WHERE name = ?`, name).
		Scan(&c.Name, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, fmt.Errorf("find category %q: %w", name, err)
	}
	return c, true, nil
}

// List implements store.CategoryStore
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, color FROM categories ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const itemColumns = `id, name, amount, categories, created_at`

// ListItems implements store.ItemStore
func (r *SQLiteRepository) ListItems(ctx context.Context) ([]core.Item, error) {
	return r.queryItems(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at, id`)
}

// FindItemsByName implements store.ItemStore
func (r *SQLiteRepository) FindItemsByName(ctx context.Context, name string) ([]core.Item, error) {
	return r.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE name = ? ORDER BY created_at, id`, name)
}

// GetItem implements store.ItemStore
func (r *SQLiteRepository) GetItem(ctx context.Context, id string) (core.Item, error) {
	items, err := r.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if err != nil {
		return core.Item{}, err
	}
	if len(items) == 0 {
		return core.Item{}, fmt.Errorf("get item %s: %w", id, core.ErrItemNotFound)
	}
	return items[0], nil
}

// CreateItem implements store.ItemStore
func (r *SQLiteRepository) CreateItem(ctx context.Context, it core.Item) (core.Item, error) {
	if err := it.Validate(); err != nil {
		return core.Item{}, err
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	cats, err := encodeCategories(it.Categories)
	if err != nil {
		return core.Item{}, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO items (id, name, amount, categories, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		it.ID, it.Name, it.Amount, cats, it.CreatedAt.UTC().Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return core.Item{}, fmt.Errorf("insert item: %w", err)
	}

	slog.InfoContext(ctx, "Item saved to SQLite", "id", it.ID, "name", it.Name, "amount", it.Amount)
	return it, nil
}

// UpdateItem implements store.ItemStore
func (r *SQLiteRepository) UpdateItem(ctx context.Context, it core.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	cats, err := encodeCategories(it.Categories)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET name = ?, amount = ?, categories = ?, updated_at = ? WHERE id = ?`,
		it.Name, it.Amount, cats, r.now().UTC().Format(timeLayout), it.ID)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update item %s: %w", it.ID, core.ErrItemNotFound)
	}
	return nil
}

// DeleteItem implements store.ItemStore
func (r *SQLiteRepository) DeleteItem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete item %s: %w", id, core.ErrItemNotFound)
	}
	return nil
}

func (r *SQLiteRepository) queryItems(ctx context.Context, query string, args ...any) ([]core.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []core.Item
	for rows.Next() {
		var (
			it        core.Item
			cats      string
			createdAt string
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Amount, &cats, &createdAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(cats), &it.Categories); err != nil {
			slog.WarnContext(ctx, "Item has malformed categories column", "id", it.ID, "error", err)
			it.Categories = nil
		}
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			it.CreatedAt = t
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func encodeCategories(cats []core.Category) (string, error) {
	if cats == nil {
		cats = []core.Category{}
	}
	b, err := json.Marshal(cats)
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}
	return string(b), nil
}

// ReadBlob implements cache.BlobStore
func (r *SQLiteRepository) ReadBlob(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv_blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return value, nil
}

// WriteBlob implements cache.BlobStore. A single upsert keeps the write atomic.
func (r *SQLiteRepository) WriteBlob(ctx context.Context, key string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv_blobs (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, r.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}
