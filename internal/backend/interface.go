package backend

import (
	"context"
	"time"

	"pantry/internal/amqp"
	"pantry/internal/cache"
	"pantry/internal/store"
)

// Refresher re-reads a remote store and notifies its subscribers.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles the stores of one backend.
type BackendResult struct {
	Categories store.CategoryStore
	Items      store.ItemStore
	Blobs      cache.BlobStore

	// Refresher is nil when the category store already sees every change.
	Refresher Refresher
	// Events is nil when AMQP is disabled or unreachable.
	Events *amqp.Client
	// Ping checks the database behind Items; nil for the memory backend.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific; also used by the sheets backend for items and cache
	SQLiteDBPath string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// Origin tags published events with the sending process.
	Origin string

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string
	SheetsPollInterval  time.Duration

	// Memory backend specific
	DataDirectory string
	CacheDir      string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
