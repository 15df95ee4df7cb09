package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/boxoffice/internal/health"
	"github.com/vladislavdragonenkov/boxoffice/internal/messaging/kafka"
)

// ephemeralConfig — конфигурация для поднятия приложения на случайных
// портах поверх памяти, без kafka и redis.
func ephemeralConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.StorageDriver = StorageDriverMemory
	cfg.KafkaBrokers = ""
	cfg.RedisAddr = ""
	return cfg
}

func TestRun_StopsCleanlyOnCancel(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, ephemeralConfig()) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_FailsOnUnknownStorageDriver(t *testing.T) {
	cfg := ephemeralConfig()
	cfg.StorageDriver = "etcd"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestInitRuntimeDependencies_PostgresHealthy(t *testing.T) {
	dsn := integrationPostgresDSN()
	if dsn == "" {
		t.Skip("postgres dsn is not configured")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "pg-init"))
	if err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}
	defer func() {
		if deps.closeFn != nil {
			_ = deps.closeFn()
		}
	}()

	if deps.store == nil || deps.outboxRepo == nil {
		t.Fatal("postgres runtime dependencies are incomplete")
	}
	if deps.storageChecker == nil {
		t.Fatal("postgres storage must register a health checker")
	}
	if check := deps.storageChecker.Check(); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("storage checker reports %+v", check)
	}
}

func TestShutdownOutboxWorker(t *testing.T) {
	logger := log.WithField("test", "shutdown")

	var cancelled bool
	done := make(chan struct{})
	close(done)

	shutdownOutboxWorker(func() { cancelled = true }, done, logger)
	if !cancelled {
		t.Fatal("worker cancel func was not called")
	}

	// Отсутствующий воркер не мешает остановке.
	shutdownOutboxWorker(nil, nil, logger)
}

func TestCloseKafkaProducer_AgainstLiveBroker(t *testing.T) {
	producer, err := kafka.NewProducer([]string{"localhost:9092"})
	if err != nil {
		t.Skipf("kafka is not available: %v", err)
	}
	closeKafkaProducer(producer, log.WithField("test", "kafka-close"))
}

func integrationPostgresDSN() string {
	for _, key := range []string{"BOXOFFICE_POSTGRES_TEST_DSN", "BOXOFFICE_POSTGRES_DSN"} {
		if dsn := strings.TrimSpace(os.Getenv(key)); dsn != "" {
			return dsn
		}
	}
	return ""
}
