package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/boxoffice/internal/health"
	"github.com/vladislavdragonenkov/boxoffice/internal/storage/memory"
	"github.com/vladislavdragonenkov/boxoffice/internal/storage/postgres"
)

// backingStore объединяет транзакционное хранилище с автономным доступом
// к outbox, который нужен фоновому воркеру публикации.
type backingStore interface {
	domain.Store
	Outbox() domain.OutboxRepository
}

// runtimeDependencies — зависимости, выбор которых зависит от конфигурации.
type runtimeDependencies struct {
	store          backingStore
	outboxRepo     domain.OutboxRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies собирает хранилище по выбранному драйверу.
// Для postgres при включённом автомигрировании схема доводится до актуальной.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		return runtimeDependencies{
			store:      store,
			outboxRepo: store.Outbox(),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, errors.New("postgres storage requires BOXOFFICE_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}
		checker := healthcheck.NewSimpleChecker("storage", func() error {
			return store.Ping(context.Background())
		})
		return runtimeDependencies{
			store:          store,
			outboxRepo:     store.Outbox(),
			storageChecker: checker,
			closeFn:        store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
