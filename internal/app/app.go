package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	"github.com/vladislavdragonenkov/boxoffice/internal/gateway/mercadopago"
	healthcheck "github.com/vladislavdragonenkov/boxoffice/internal/health"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/archive"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/booking"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/reconcile"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/stock"
	"github.com/vladislavdragonenkov/boxoffice/internal/storage/rediscache"
	transporthttp "github.com/vladislavdragonenkov/boxoffice/internal/transport/http"
	"github.com/vladislavdragonenkov/boxoffice/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run запускает бокс-офис: API-сервер, сервер метрик, архиватор просроченных
// резерваций и воркер публикации outbox. Блокируется до отмены ctx или
// фатальной ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if deps.closeFn != nil {
			if err := deps.closeFn(); err != nil {
				logger.WithError(err).Warn("failed to close storage")
			}
		}
	}()

	gateway := initGateway(cfg, logger)
	cache := initCapacityCache(cfg, logger)
	defer func() {
		if cache != nil {
			_ = cache.Close()
		}
	}()

	// Недоступный брокер не мешает продажам: outbox хранит события.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafkaProducer(kafkaProducer, logger)

	ledger := stock.NewLedger(logger.WithField("component", "stock-ledger"))
	factory := booking.NewFactory(deps.store, ledger, cfg.ReservationExpiry, logger.WithField("component", "booking-factory"))
	engine := reconcile.NewEngine(deps.store, gateway, ledger, reconcile.Config{
		SandboxMode:        cfg.SandboxMode,
		AmountEpsilonMinor: cfg.AmountEpsilonMinor,
	}, logger.WithField("component", "reconcile"))
	archiver := archive.NewArchiver(deps.store, ledger,
		archive.WithLogger(logger.WithField("component", "expiry-archiver")),
		archive.WithInterval(cfg.ArchiverInterval),
		archive.WithBatchSize(cfg.ArchiverBatchSize),
		archive.WithStaleCutoff(cfg.ArchiverStaleCutoff),
	)
	restorer := archive.NewRestorer(deps.store, ledger, logger.WithField("component", "archive-restorer"))

	handler := transporthttp.NewHandler(deps.store, factory, engine, archiver, restorer, cache, logger.WithField("component", "http"))
	api := transporthttp.NewRouter(handler)

	healthHandler := healthcheck.NewHandler(version.String())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	go archiver.Run(ctx)

	var (
		workerCancel context.CancelFunc
		workerDone   chan struct{}
	)
	if worker := createOutboxWorker(cfg, deps.outboxRepo, kafkaProducer, logger); worker != nil {
		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(ctx)
		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			worker.Run(workerCtx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- api.Start(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		shutdownEcho(api, logger)
		shutdownHTTP(metricsSrv, logger)
		shutdownOutboxWorker(workerCancel, workerDone, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		shutdownOutboxWorker(workerCancel, workerDone, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// initGateway выбирает платёжный шлюз: реальный клиент при заданном токене,
// иначе mock для локальной разработки.
func initGateway(cfg Config, logger *log.Entry) domain.PaymentGateway {
	if cfg.MPAccessToken == "" {
		logger.Warn("payment gateway token is empty, using mock gateway")
		return mercadopago.NewMockGateway()
	}

	options := []mercadopago.Option{
		mercadopago.WithLogger(logger.WithField("component", "mercadopago")),
	}
	if cfg.MPBaseURL != "" {
		options = append(options, mercadopago.WithBaseURL(cfg.MPBaseURL))
	}
	return mercadopago.NewClient(cfg.MPAccessToken, options...)
}

// initCapacityCache подключает redis-кеш снимка ёмкости; без адреса или при
// недоступном redis возвращает nil, и снимок читается из хранилища напрямую.
func initCapacityCache(cfg Config, logger *log.Entry) *rediscache.CapacityCache {
	client := rediscache.NewClient(rediscache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CapacityCacheTTL,
	})
	if client == nil {
		if cfg.RedisAddr != "" {
			logger.Warn("redis is not reachable, capacity cache disabled")
		}
		return nil
	}
	logger.WithField("addr", cfg.RedisAddr).Info("capacity cache enabled")
	return rediscache.NewCapacityCache(client, cfg.CapacityCacheTTL, logger.WithField("component", "capacity-cache"))
}

// startMetricsServer запускает HTTP-сервер метрик и health-проверок.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownEcho аккуратно останавливает API-сервер.
func shutdownEcho(api interface {
	Shutdown(ctx context.Context) error
}, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := api.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("api shutdown with error")
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

// shutdownOutboxWorker дожидается остановки воркера публикации.
func shutdownOutboxWorker(cancel context.CancelFunc, done chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}
