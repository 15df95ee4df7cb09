package archive

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/stock"
)

const (
	restoreCreateAttempts = 5
	restoreCodeAttempts   = 5
)

// Restorer возвращает архивные снимки обратно в живой инвентарь.
type Restorer struct {
	store  domain.Store
	ledger *stock.Ledger
	logger *log.Entry
}

// NewRestorer создаёт движок восстановления из архива.
func NewRestorer(store domain.Store, ledger *stock.Ledger, logger *log.Entry) *Restorer {
	if logger == nil {
		logger = log.WithField("component", "restore-engine")
	}
	return &Restorer{store: store, ledger: ledger, logger: logger}
}

// Restore восстанавливает пачку снимков. Строго всё-или-ничего: вся пачка
// идёт в одной транзакции, ошибка на любом снимке откатывает все
// восстановленные до него.
func (r *Restorer) Restore(ctx context.Context, ids []string, opts domain.RestoreOptions) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	restored := make([]string, 0, len(ids))
	err := r.store.WithTx(ctx, func(tx domain.Tx) error {
		for _, id := range ids {
			resID, err := r.restoreOne(tx, id, opts)
			if err != nil {
				return fmt.Errorf("restore snapshot %s: %w", id, err)
			}
			restored = append(restored, resID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.WithField("count", len(restored)).Info("archive snapshots restored")
	return restored, nil
}

func (r *Restorer) restoreOne(tx domain.Tx, snapshotID string, opts domain.RestoreOptions) (string, error) {
	snap, err := tx.Archive().Get(snapshotID)
	if err != nil {
		return "", err
	}
	res := snap.Reservation

	if res.Kind == domain.KindVIP {
		if err := r.placeOnTable(tx, &res); err != nil {
			return "", err
		}
	}

	if opts.RegenerateCodes {
		res.QRCode = uuid.NewString()
	}
	if opts.ForcePaymentIDNull {
		res.ExternalPaymentID = ""
	}
	res.UpdatedAt = time.Now().UTC()

	if err := createWithRetry(tx, &res); err != nil {
		return "", err
	}

	if res.PaymentStatus == domain.PaymentStatusApproved {
		if err := r.recommit(tx, &res); err != nil {
			return "", err
		}
	} else if res.Kind == domain.KindVIP {
		if err := tx.Slots().SetStatus(res.VIPLocationID, res.TableNumber, domain.SlotReserved); err != nil {
			return "", err
		}
	}

	// Снимок удаляется только после успешного создания живой строки.
	if err := tx.Archive().Delete(snapshotID); err != nil {
		return "", err
	}
	return res.ID, nil
}

// placeOnTable приводит номер стола снимка к локальной нумерации и проверяет,
// что стол не удерживается другой активной резервацией.
func (r *Restorer) placeOnTable(tx domain.Tx, res *domain.Reservation) error {
	locations, err := tx.Slots().Locations()
	if err != nil {
		return err
	}

	local, err := LocalTableNumber(locations, res.VIPLocationID, res.TableNumber)
	if err != nil {
		return err
	}
	res.TableNumber = local

	if _, err := tx.Slots().Get(res.VIPLocationID, local); err != nil {
		return err
	}

	taken, err := tx.Reservations().ActiveOnTable(res.VIPLocationID, local)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrTableTaken
	}
	return nil
}

// recommit повторно фиксирует сток и выпускает новый код валидации для
// снимка, который был approved на момент архивации.
func (r *Restorer) recommit(tx domain.Tx, res *domain.Reservation) error {
	if res.Kind == domain.KindVIP {
		if err := r.ledger.Commit(tx, domain.VIPCategory(res.VIPLocationID), res.TableCount); err != nil {
			return err
		}
		if err := tx.Slots().SetStatus(res.VIPLocationID, res.TableNumber, domain.SlotSold); err != nil {
			return err
		}
	} else {
		if err := r.ledger.Commit(tx, domain.GeneralCategory(res.Gender), res.Quantity); err != nil {
			return err
		}
	}

	code, err := mintCode(tx)
	if err != nil {
		return err
	}
	res.ValidationCode = code
	return tx.Reservations().Update(*res)
}

// createWithRetry создаёт живую строку, перегенерируя QR на коллизии.
func createWithRetry(tx domain.Tx, res *domain.Reservation) error {
	for attempt := 0; attempt < restoreCreateAttempts; attempt++ {
		err := tx.Reservations().Create(*res)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrUniqueCollision) {
			return err
		}
		res.QRCode = uuid.NewString()
	}
	return domain.ErrUniqueCollision
}

func mintCode(tx domain.Tx) (string, error) {
	for attempt := 0; attempt < restoreCodeAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1000000))
		if err != nil {
			return "", fmt.Errorf("generate validation code: %w", err)
		}
		code := fmt.Sprintf("%06d", n.Int64())

		exists, err := tx.Reservations().ExistsValidationCode(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", domain.ErrUniqueCollision
}
