package archive

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/stock"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultSweepBatch    = 200
	defaultStaleCutoff   = 24 * time.Hour
)

var (
	archiverRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxoffice_archiver_runs_total",
		Help: "Total number of expiry archiver runs grouped by result.",
	}, []string{"result"})
	archiverArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxoffice_archiver_archived_total",
		Help: "Total number of stale reservations moved to archive.",
	})
	archiverLastArchived = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxoffice_archiver_last_archived",
		Help: "Number of reservations archived during the last sweep.",
	})
	archiverSafetyReverts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxoffice_archiver_safety_reverts_total",
		Help: "Total number of unexpectedly approved rows whose stock was reverted before archival.",
	})
)

// ArchiverOptions задаёт параметры фонового архиватора.
type ArchiverOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	// StaleCutoff — возраст purchaseDate, после которого резервация без
	// expiresAt тоже считается протухшей.
	StaleCutoff time.Duration
}

// ArchiverOption настраивает Archiver.
type ArchiverOption func(*ArchiverOptions)

// WithLogger задаёт logger для архиватора.
func WithLogger(logger *log.Entry) ArchiverOption {
	return func(opts *ArchiverOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между проходами.
func WithInterval(interval time.Duration) ArchiverOption {
	return func(opts *ArchiverOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт максимум строк за один проход.
func WithBatchSize(batchSize int) ArchiverOption {
	return func(opts *ArchiverOptions) {
		opts.BatchSize = batchSize
	}
}

// WithStaleCutoff задаёт возраст, после которого резервация без expiresAt
// считается протухшей.
func WithStaleCutoff(cutoff time.Duration) ArchiverOption {
	return func(opts *ArchiverOptions) {
		opts.StaleCutoff = cutoff
	}
}

// Archiver периодически переносит неразрешённые протухшие резервации в архив.
// Одиночный фоновый воркер: проход ограничен батчем и завершается до
// следующего тика, с собой он не пересекается.
type Archiver struct {
	store       domain.Store
	ledger      *stock.Ledger
	logger      *log.Entry
	interval    time.Duration
	batchSize   int
	staleCutoff time.Duration
}

// NewArchiver создаёт фоновый архиватор протухших резерваций.
func NewArchiver(store domain.Store, ledger *stock.Ledger, options ...ArchiverOption) *Archiver {
	opts := ArchiverOptions{
		Interval:    defaultSweepInterval,
		BatchSize:   defaultSweepBatch,
		StaleCutoff: defaultStaleCutoff,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "expiry-archiver")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatch
	}
	if opts.StaleCutoff <= 0 {
		opts.StaleCutoff = defaultStaleCutoff
	}

	return &Archiver{
		store:       store,
		ledger:      ledger,
		logger:      logger,
		interval:    opts.Interval,
		batchSize:   opts.BatchSize,
		staleCutoff: opts.StaleCutoff,
	}
}

// Run запускает периодические проходы до отмены ctx.
func (a *Archiver) Run(ctx context.Context) {
	a.sweep(ctx, time.Now().UTC())

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep(ctx, time.Now().UTC())
		}
	}
}

func (a *Archiver) sweep(ctx context.Context, now time.Time) {
	archived, err := a.SweepOnce(ctx, now)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		archiverRunsTotal.WithLabelValues("error").Inc()
		a.logger.WithError(err).Warn("expiry sweep failed")
		return
	}

	archiverRunsTotal.WithLabelValues("ok").Inc()
	archiverLastArchived.Set(float64(archived))
	if archived > 0 {
		a.logger.WithField("archived", archived).Info("expiry sweep completed")
	}
}

// SweepOnce архивирует до batchSize протухших резерваций в одной транзакции.
// Строки сверх батча подберёт следующий проход.
func (a *Archiver) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	cutoff := now.Add(-a.staleCutoff)

	archived := 0
	err := a.store.WithTx(ctx, func(tx domain.Tx) error {
		stale, err := tx.Reservations().ListStale(now, cutoff, a.batchSize)
		if err != nil {
			return err
		}

		for _, res := range stale {
			ok, err := a.archiveRow(tx, res, now)
			if err != nil {
				return err
			}
			if ok {
				archived++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if archived > 0 {
		archiverArchivedTotal.Add(float64(archived))
	}
	return archived, nil
}

// archiveRow переносит одну строку в архив. Строка, исчезнувшая между
// выборкой и архивацией, пропускается без ошибки.
func (a *Archiver) archiveRow(tx domain.Tx, res domain.Reservation, now time.Time) (bool, error) {
	current, err := tx.Reservations().Get(res.ID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return false, nil
		}
		return false, err
	}

	// Страховка от гонки: фильтр выборки не должен отдавать approved,
	// но если отдал, сток обязан вернуться до удаления строки.
	if current.PaymentStatus == domain.PaymentStatusApproved {
		if err := a.revertStock(tx, current); err != nil {
			return false, err
		}
		archiverSafetyReverts.Inc()
		a.logger.WithField("reservation_id", current.ID).Warn("approved row reached expiry sweep, stock reverted")
	}

	snap := domain.ArchiveSnapshot{
		ID:          current.ID,
		Reservation: current,
		ArchivedAt:  now,
		ArchivedBy:  "expiry-archiver",
		Reason:      domain.ArchiveReasonPaymentTimeout,
	}
	if err := tx.Archive().Create(snap); err != nil {
		return false, err
	}
	if err := tx.Reservations().Delete(current.ID); err != nil {
		return false, err
	}

	if current.Kind == domain.KindVIP {
		if err := tx.Slots().SetStatus(current.VIPLocationID, current.TableNumber, domain.SlotAvailable); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (a *Archiver) revertStock(tx domain.Tx, res domain.Reservation) error {
	if res.Kind == domain.KindVIP {
		return a.ledger.Revert(tx, domain.VIPCategory(res.VIPLocationID), res.TableCount)
	}
	return a.ledger.Revert(tx, domain.GeneralCategory(res.Gender), res.Quantity)
}

// ArchiveOne вручную переносит живую резервацию в архив с явной причиной.
// Используется админ-удалением; approved-строка освобождает сток.
func (a *Archiver) ArchiveOne(ctx context.Context, reservationID string, reason domain.ArchiveReason, actor string) error {
	if reason == "" {
		reason = domain.ArchiveReasonOther
	}
	now := time.Now().UTC()

	return a.store.WithTx(ctx, func(tx domain.Tx) error {
		res, err := tx.Reservations().Get(reservationID)
		if err != nil {
			return err
		}

		if res.PaymentStatus == domain.PaymentStatusApproved {
			if err := a.revertStock(tx, res); err != nil {
				return err
			}
		}

		snap := domain.ArchiveSnapshot{
			ID:          res.ID,
			Reservation: res,
			ArchivedAt:  now,
			ArchivedBy:  actor,
			Reason:      reason,
		}
		if err := tx.Archive().Create(snap); err != nil {
			return err
		}
		if err := tx.Reservations().Delete(res.ID); err != nil {
			return err
		}

		if res.Kind == domain.KindVIP {
			if err := tx.Slots().SetStatus(res.VIPLocationID, res.TableNumber, domain.SlotAvailable); err != nil {
				return err
			}
		}

		a.logger.WithFields(log.Fields{
			"reservation_id": res.ID,
			"reason":         reason,
			"actor":          actor,
		}).Info("reservation archived")
		return nil
	})
}
