package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pantry/internal/adapters"
	"pantry/internal/amqp"
	"pantry/internal/cache"
	gsheet "pantry/internal/sheets/google"
	"pantry/internal/storage"
	"pantry/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachEvents(res, config)
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Categories: repo,
		Items:      repo,
		Blobs:      repo,
		Refresher:  repo,
		Ping:       repo.Ping,
		Cleanup:    repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	cli, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName, config.SheetsPollInterval)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"sheet", config.GoogleSheetName,
		"poll_interval", config.SheetsPollInterval,
		"db_path", config.SQLiteDBPath)

	return &BackendResult{
		Categories: cli,
		Items:      repo,
		Blobs:      repo,
		Refresher:  cli,
		Ping:       repo.Ping,
		Cleanup: func() error {
			return errors.Join(cli.Close(), repo.Close())
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	st := memory.NewFromFiles(dataDir)

	var blobs cache.BlobStore = cache.NewMemoryBlobStore()
	if config.CacheDir != "" {
		fileBlobs, err := cache.NewFileBlobStore(config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache directory: %w", err)
		}
		blobs = fileBlobs
	}

	f.logger.Info("Initialized memory backend",
		"data_directory", dataDir,
		"cache_dir", config.CacheDir)

	return &BackendResult{
		Categories: st,
		Items:      st,
		Blobs:      blobs,
	}, nil
}

// attachEvents connects AMQP when configured and wraps the category store so
// that writes are announced. A broker that cannot be reached is logged and
// skipped; periodic refresh still converges.
func (f *DefaultFactory) attachEvents(res *BackendResult, config Config) {
	if config.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without category events", "error", err)
		return
	}
	f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange, "origin", config.Origin)

	res.Events = client
	res.Categories = adapters.NewNotifyingCategoryStore(res.Categories, client, config.Origin)

	prev := res.Cleanup
	res.Cleanup = func() error {
		var errs []error
		errs = append(errs, client.Close())
		if prev != nil {
			errs = append(errs, prev())
		}
		return errors.Join(errs...)
	}
}
