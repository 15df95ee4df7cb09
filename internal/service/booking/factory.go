package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/pricing"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/stock"
)

const defaultExpiry = 30 * time.Minute

// Factory создаёт pending-резервации: проверяет ёмкость, считает цену
// и вставляет строку в той же транзакции, что и проверка, чтобы между
// проверкой и вставкой не вклинилась конкурирующая покупка.
type Factory struct {
	store  domain.Store
	ledger *stock.Ledger
	expiry time.Duration
	logger *log.Entry
}

// NewFactory создаёт фабрику резерваций. expiry — срок жизни pending-строки;
// нулевое значение заменяется значением по умолчанию.
func NewFactory(store domain.Store, ledger *stock.Ledger, expiry time.Duration, logger *log.Entry) *Factory {
	if logger == nil {
		logger = log.WithField("component", "booking-factory")
	}
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	return &Factory{
		store:  store,
		ledger: ledger,
		expiry: expiry,
		logger: logger,
	}
}

// CreateInput — запрос на покупку.
type CreateInput struct {
	Kind          domain.Kind
	Gender        domain.Gender
	Quantity      int
	VIPLocationID string
	TableNumber   int
	Customer      domain.Customer
	// PaymentMethod — подсказка клиента о способе оплаты; на решение о ёмкости
	// не влияет, пишется только в лог.
	PaymentMethod string
}

// Create проверяет ёмкость и создаёт pending-резервацию. Счётчики sold
// не трогаются: они растут только при approved. VIP-стол при этом
// переводится в reserved, чтобы исключить параллельный выбор того же стола.
func (f *Factory) Create(ctx context.Context, in CreateInput) (domain.Reservation, error) {
	var created domain.Reservation

	err := f.store.WithTx(ctx, func(tx domain.Tx) error {
		event, err := tx.Events().Active()
		if err != nil {
			return err
		}

		switch in.Kind {
		case domain.KindGeneral:
			created, err = f.createGeneral(tx, event, in)
		case domain.KindVIP:
			created, err = f.createVIP(tx, event, in)
		default:
			return domain.ErrKindInvalid
		}
		return err
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	f.logger.WithFields(log.Fields{
		"reservation_id": created.ID,
		"kind":           created.Kind,
		"total_minor":    created.TotalPriceMinor,
		"payment_method": in.PaymentMethod,
	}).Info("pending reservation created")

	return created, nil
}

func (f *Factory) createGeneral(tx domain.Tx, event domain.Event, in CreateInput) (domain.Reservation, error) {
	if in.Quantity <= 0 {
		return domain.Reservation{}, domain.ErrQuantityInvalid
	}
	category := domain.GeneralCategory(in.Gender)

	cfg, err := tx.Stock().Get(category)
	if err != nil {
		return domain.Reservation{}, err
	}

	if err := f.checkTotalCap(tx, event, in.Quantity); err != nil {
		return domain.Reservation{}, err
	}
	if err := f.ledger.ReserveCapacity(tx, category, in.Quantity); err != nil {
		return domain.Reservation{}, err
	}

	res := f.newReservation(in, cfg)
	res.Quantity = in.Quantity
	res.TotalPriceMinor = cfg.UnitPriceMinor * int64(in.Quantity)

	if errs := res.Validate(); len(errs) > 0 {
		return domain.Reservation{}, errs[0]
	}
	if err := tx.Reservations().Create(res); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (f *Factory) createVIP(tx domain.Tx, event domain.Event, in CreateInput) (domain.Reservation, error) {
	category := domain.VIPCategory(in.VIPLocationID)

	cfg, err := tx.Stock().Get(category)
	if err != nil {
		return domain.Reservation{}, err
	}

	slot, err := tx.Slots().Get(in.VIPLocationID, in.TableNumber)
	if err != nil {
		return domain.Reservation{}, err
	}
	if slot.Status != domain.SlotAvailable {
		return domain.Reservation{}, domain.ErrSlotUnavailable
	}

	// Один стол за транзакцию; в человеко-эквивалентах — вместимость стола.
	persons := cfg.TableUnitSize
	if persons <= 0 {
		persons = 1
	}
	if err := f.checkTotalCap(tx, event, persons); err != nil {
		return domain.Reservation{}, err
	}
	if err := f.ledger.ReserveCapacity(tx, category, 1); err != nil {
		return domain.Reservation{}, err
	}

	res := f.newReservation(in, cfg)
	res.TableCount = 1
	res.VIPLocationID = in.VIPLocationID
	res.TableNumber = in.TableNumber
	res.TotalPriceMinor = cfg.UnitPriceMinor

	if errs := res.Validate(); len(errs) > 0 {
		return domain.Reservation{}, errs[0]
	}
	if err := tx.Reservations().Create(res); err != nil {
		return domain.Reservation{}, err
	}
	if err := tx.Slots().SetStatus(in.VIPLocationID, in.TableNumber, domain.SlotReserved); err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

// checkTotalCap сверяет запрос с общим лимитом мероприятия: занятые места
// считаются по approved-резервациям, VIP — в человеко-эквивалентах.
func (f *Factory) checkTotalCap(tx domain.Tx, event domain.Event, persons int) error {
	if event.TotalCapacity <= 0 {
		return nil
	}
	taken, err := tx.Reservations().CountApprovedPersons()
	if err != nil {
		return err
	}
	if taken+persons > event.TotalCapacity {
		return domain.ErrInsufficientCapacity
	}
	return nil
}

func (f *Factory) newReservation(in CreateInput, cfg domain.StockConfig) domain.Reservation {
	now := time.Now().UTC()
	return domain.Reservation{
		ID:            uuid.NewString(),
		Kind:          in.Kind,
		Gender:        in.Gender,
		Currency:      cfg.Currency,
		Customer:      in.Customer,
		PaymentStatus: domain.PaymentStatusPending,
		QRCode:        uuid.NewString(),
		PurchaseDate:  now,
		ExpiresAt:     now.Add(f.expiry),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Quote считает справочную цену с учётом лучшей скидки. Скидки на этом этапе
// носят информационный характер и сервером при создании не применяются.
type Quote struct {
	SubtotalMinor int64
	DiscountRule  *domain.DiscountRule
	TotalMinor    int64
}

// QuoteGeneral возвращает справочный расчёт для общего входа.
func (f *Factory) QuoteGeneral(ctx context.Context, gender domain.Gender, quantity int) (Quote, error) {
	var quote Quote
	err := f.store.WithTx(ctx, func(tx domain.Tx) error {
		cfg, err := tx.Stock().Get(domain.GeneralCategory(gender))
		if err != nil {
			return err
		}
		rules, err := tx.Discounts().ListActive(domain.KindGeneral)
		if err != nil {
			return err
		}

		rule := pricing.Pick(rules, domain.KindGeneral, quantity)
		quote = Quote{
			SubtotalMinor: cfg.UnitPriceMinor * int64(quantity),
			DiscountRule:  rule,
			TotalMinor:    pricing.Apply(cfg.UnitPriceMinor, quantity, rule),
		}
		return nil
	})
	return quote, err
}
