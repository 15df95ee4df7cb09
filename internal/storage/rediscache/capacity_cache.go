package rediscache

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const defaultCapacityTTL = 15 * time.Second

// Options задаёт параметры подключения к Redis для кэша ёмкости.
type Options struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
	TTL      time.Duration
}

// NewClient создаёт Redis-клиент и проверяет подключение. При недоступности
// Redis возвращает nil: кэш деградирует в прямые чтения из БД.
func NewClient(opts Options) *redis.Client {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil
	}

	var tlsConf *tls.Config
	if opts.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

// CapacityCache хранит готовые ответы публичных чтений ёмкости.
// Ответ ёмкости допускает короткое устаревание, авторитетен только сток в БД.
type CapacityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Entry
}

// NewCapacityCache создаёт кэш. client == nil выключает кэширование,
// все операции становятся no-op.
func NewCapacityCache(client *redis.Client, ttl time.Duration, logger *log.Entry) *CapacityCache {
	if ttl <= 0 {
		ttl = defaultCapacityTTL
	}
	if logger == nil {
		logger = log.WithField("component", "capacity-cache")
	}
	return &CapacityCache{client: client, ttl: ttl, logger: logger}
}

// Enabled сообщает, подключён ли кэш.
func (c *CapacityCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get возвращает закэшированный ответ или (nil, false) при промахе.
// Ошибки Redis считаются промахом: чтение уходит в БД.
func (c *CapacityCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("key", key).Debug("capacity cache read failed")
		}
		return nil, false
	}
	return payload, true
}

// Set кладёт ответ с TTL. Ошибка записи не мешает вызывающему.
func (c *CapacityCache) Set(ctx context.Context, key string, payload []byte) {
	if !c.Enabled() {
		return
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Debug("capacity cache write failed")
	}
}

// Invalidate снимает ключи после мутаций стока.
func (c *CapacityCache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WithError(err).Debug("capacity cache invalidate failed")
	}
}

// Close закрывает подключение к Redis.
func (c *CapacityCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
