package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/messaging/kafka"
)

// Драйверы хранилища, поддерживаемые приложением.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения. Значения читаются из
// переменных окружения; .env-файл подхватывается в main через godotenv.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	CapacityCacheTTL time.Duration

	KafkaBrokers  string
	KafkaTopic    string
	KafkaDLQTopic string

	// MPAccessToken — токен платёжного шлюза; пустой токен включает
	// mock-шлюз для локальной разработки.
	MPAccessToken      string
	MPBaseURL          string
	SandboxMode        bool
	AmountEpsilonMinor int64

	ReservationExpiry time.Duration

	ArchiverInterval    time.Duration
	ArchiverStaleCutoff time.Duration
	ArchiverBatchSize   int

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
}

// DefaultConfig возвращает базовые настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CapacityCacheTTL:    15 * time.Second,
		KafkaTopic:          kafka.TopicReservationEvents,
		KafkaDLQTopic:       kafka.TopicDeadLetterQueue,
		AmountEpsilonMinor:  1,
		ReservationExpiry:   30 * time.Minute,
		ArchiverInterval:    5 * time.Minute,
		ArchiverStaleCutoff: 24 * time.Hour,
		ArchiverBatchSize:   200,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   5,
		OutboxRetryDelay:    200 * time.Millisecond,
	}
}

// LoadConfig читает настройки из окружения поверх значений по умолчанию.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("BOXOFFICE_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("BOXOFFICE_METRICS_ADDR", cfg.MetricsAddr)

	cfg.StorageDriver = envString("BOXOFFICE_STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envString("BOXOFFICE_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("BOXOFFICE_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.RedisAddr = envString("BOXOFFICE_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envString("BOXOFFICE_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("BOXOFFICE_REDIS_DB", cfg.RedisDB)
	cfg.CapacityCacheTTL = envDuration("BOXOFFICE_CAPACITY_CACHE_TTL", cfg.CapacityCacheTTL)

	cfg.KafkaBrokers = envString("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envString("BOXOFFICE_KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.KafkaDLQTopic = envString("BOXOFFICE_KAFKA_DLQ_TOPIC", cfg.KafkaDLQTopic)

	cfg.MPAccessToken = envString("MP_ACCESS_TOKEN", cfg.MPAccessToken)
	cfg.MPBaseURL = envString("MP_BASE_URL", cfg.MPBaseURL)
	cfg.SandboxMode = envBool("BOXOFFICE_SANDBOX_MODE", cfg.SandboxMode)
	cfg.AmountEpsilonMinor = int64(envInt("BOXOFFICE_AMOUNT_EPSILON_MINOR", int(cfg.AmountEpsilonMinor)))

	cfg.ReservationExpiry = envDuration("BOXOFFICE_RESERVATION_EXPIRY", cfg.ReservationExpiry)

	cfg.ArchiverInterval = envDuration("BOXOFFICE_ARCHIVER_INTERVAL", cfg.ArchiverInterval)
	cfg.ArchiverStaleCutoff = envDuration("BOXOFFICE_ARCHIVER_STALE_CUTOFF", cfg.ArchiverStaleCutoff)
	cfg.ArchiverBatchSize = envInt("BOXOFFICE_ARCHIVER_BATCH_SIZE", cfg.ArchiverBatchSize)

	cfg.OutboxPollInterval = envDuration("BOXOFFICE_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("BOXOFFICE_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("BOXOFFICE_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("BOXOFFICE_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	return cfg
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
