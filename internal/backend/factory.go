package backend

import (
	"context"
	"fmt"
	"log/slog"

	"casebook/internal/amqp"
	"casebook/internal/services"
	"casebook/internal/storage"
	"casebook/internal/storage/postgres"
	"casebook/internal/store"
	"casebook/internal/store/memory"
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

// CreateBackend builds the configured store and wraps it in a
// services.CaseService that publishes case events when AMQP is configured.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		storage store.CaseStore
		err     error
	)
	switch config.Type {
	case SQLiteBackend:
		storage, err = f.createSQLiteStore(config)
	case PostgresBackend:
		storage, err = f.createPostgresStore(ctx, config)
	case MemoryBackend:
		storage = f.createMemoryStore(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	svc := services.NewCaseService(storage, f.publisher(config))
	return &BackendResult{
		Backend: svc,
		Cleanup: svc.Close,
	}, nil
}

// publisher returns an untyped nil when AMQP is off or unreachable so the
// service can tell "no publisher" apart from a broken one.
func (f *DefaultFactory) publisher(config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without case events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func (f *DefaultFactory) createSQLiteStore(config Config) (store.CaseStore, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createPostgresStore(ctx context.Context, config Config) (store.CaseStore, error) {
	pool, err := postgres.NewPool(ctx, config.DatabaseURL, int32(config.MaxConns), int32(config.MinConns))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres pool: %w", err)
	}
	applied, err := postgres.RunMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run postgres migrations: %w", err)
	}
	f.logger.Info("Initialized Postgres backend",
		"max_conns", config.MaxConns,
		"migrations_applied", applied)
	return postgres.NewCaseRepoPG(pool), nil
}

func (f *DefaultFactory) createMemoryStore(config Config) store.CaseStore {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	s := memory.NewFromFiles(dataDir)
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return s
}
