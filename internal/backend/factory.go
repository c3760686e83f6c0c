package backend

import (
	"context"
	"fmt"

	"cfocopilot/internal/log"
	"cfocopilot/internal/storage"
	"cfocopilot/internal/tables/google"
	"cfocopilot/internal/tables/memory"
	"cfocopilot/internal/tables/postgres"
	"cfocopilot/internal/tables/xlsx"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case XLSXBackend:
		return f.createXLSXBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store, err := memory.NewFromDir(dataDir, config.Names)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return &Result{Type: MemoryBackend, Source: store, Writer: store}, nil
}

func (f *DefaultFactory) createXLSXBackend(config Config) (*Result, error) {
	wb := xlsx.New(config.XLSXPath, config.Names)
	f.logger.Info("Initialized xlsx backend", "path", config.XLSXPath)
	return &Result{Type: XLSXBackend, Source: wb, Writer: wb}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	cli, err := google.New(ctx, google.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		Names:           config.Names,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &Result{Type: SheetsBackend, Source: cli}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Type: SQLiteBackend, Source: repo, Writer: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*Result, error) {
	src, err := postgres.Open(ctx, config.DatabaseURL, config.Names)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres source: %w", err)
	}

	f.logger.Info("Initialized postgres backend")
	return &Result{
		Type:   PostgresBackend,
		Source: src,
		Cleanup: func() error {
			src.Close()
			return nil
		},
	}, nil
}
