package stock

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// Ledger инкапсулирует работу со счётчиками limit/sold. Все мутирующие
// операции вызываются строго внутри транзакции, в которой меняется
// и сопутствующая резервация: методы принимают открытый domain.Tx.
type Ledger struct {
	logger *log.Entry
}

// NewLedger создаёт леджер стока.
func NewLedger(logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "stock-ledger")
	}
	return &Ledger{logger: logger}
}

// Remaining возвращает остаток по категории.
func (l *Ledger) Remaining(tx domain.Tx, category domain.Category) (int, error) {
	cfg, err := tx.Stock().Get(category)
	if err != nil {
		return 0, err
	}
	return cfg.Remaining(), nil
}

// ReserveCapacity проверяет, уместится ли n в остаток категории.
// Чистая проверка: sold не меняется, счётчик растёт только при approved.
func (l *Ledger) ReserveCapacity(tx domain.Tx, category domain.Category, n int) error {
	if n <= 0 {
		return domain.ErrQuantityInvalid
	}
	cfg, err := tx.Stock().Get(category)
	if err != nil {
		return err
	}
	if cfg.Remaining() < n {
		return domain.ErrInsufficientCapacity
	}
	return nil
}

// Commit фиксирует n проданных единиц. Выход за limit — нарушение инварианта,
// не бизнес-состояние: громко логируется, транзакция должна откатиться.
func (l *Ledger) Commit(tx domain.Tx, category domain.Category, n int) error {
	if n <= 0 {
		return domain.ErrQuantityInvalid
	}
	if err := tx.Stock().AdjustSold(category, n); err != nil {
		if domain.IsInvariantViolation(err) {
			l.logger.WithFields(log.Fields{
				"category": category,
				"delta":    n,
			}).Error("stock commit would exceed limit, aborting transaction")
		}
		return err
	}
	return nil
}

// Revert возвращает n единиц обратно в сток. Уход sold ниже нуля —
// такой же сигнал повреждения леджера, как и переполнение.
func (l *Ledger) Revert(tx domain.Tx, category domain.Category, n int) error {
	if n <= 0 {
		return domain.ErrQuantityInvalid
	}
	if err := tx.Stock().AdjustSold(category, -n); err != nil {
		if domain.IsInvariantViolation(err) {
			l.logger.WithFields(log.Fields{
				"category": category,
				"delta":    -n,
			}).Error("stock revert would drop below zero, aborting transaction")
		}
		return err
	}
	return nil
}
