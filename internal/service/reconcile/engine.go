package reconcile

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	"github.com/vladislavdragonenkov/boxoffice/internal/metrics"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/stock"
)

const (
	defaultEpsilonMinor = 1 // один цент допуска при сравнении сумм
	codeMintAttempts    = 5
)

// Config задаёт правила принятия решения об approve.
type Config struct {
	// SandboxMode включает relaxed approval для платежей не из live-режима.
	SandboxMode bool
	// AmountEpsilonMinor — допуск при сравнении сумм; ноль заменяется единицей.
	AmountEpsilonMinor int64
}

// Engine — движок сверки: отображает состояние платежа во внешнем шлюзе
// на статус резервации и ровно один раз на логический переход двигает сток.
type Engine struct {
	store   domain.Store
	gateway domain.PaymentGateway
	ledger  *stock.Ledger
	cfg     Config
	logger  *log.Entry
	metrics *metrics.ReconcileMetrics
}

// NewEngine создаёт движок сверки.
func NewEngine(store domain.Store, gateway domain.PaymentGateway, ledger *stock.Ledger, cfg Config, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.WithField("component", "reconcile-engine")
	}
	if cfg.AmountEpsilonMinor <= 0 {
		cfg.AmountEpsilonMinor = defaultEpsilonMinor
	}
	return &Engine{
		store:   store,
		gateway: gateway,
		ledger:  ledger,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewReconcileMetrics(),
	}
}

// NewEngineWithoutMetrics создаёт движок без метрик (для тестов).
func NewEngineWithoutMetrics(store domain.Store, gateway domain.PaymentGateway, ledger *stock.Ledger, cfg Config, logger *log.Entry) *Engine {
	e := NewEngine(store, gateway, ledger, cfg, logger)
	e.metrics = nil
	return e
}

// Request идентифицирует, что сверять: платёж, заказ шлюза с несколькими
// платежами либо клиентский preference.
type Request struct {
	PaymentID    string
	OrderID      string
	PreferenceID string
}

// Result — итог сверки для вызывающего.
type Result struct {
	ReservationID     string
	Status            domain.PaymentStatus
	HasValidationCode bool
}

// Reconcile выполняет одну сверку. Повторный вызов для того же платежа —
// no-op сверх подтверждения уже применённого состояния: сток не двигается
// дважды для одного логического перехода.
func (e *Engine) Reconcile(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordStarted()
	}
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordDuration(time.Since(start))
			e.metrics.RecordFinished()
		}
	}()

	payment, err := e.resolvePayment(ctx, req)
	if err != nil {
		if domain.IsRetryable(err) {
			if e.metrics != nil {
				e.metrics.RecordRetryLater()
			}
			return Result{}, err
		}
		if e.metrics != nil {
			e.metrics.RecordFailed()
		}
		return Result{}, err
	}

	_, reservationID, ok := paymentReference(payment)
	if !ok {
		if e.metrics != nil {
			e.metrics.RecordFailed()
		}
		return Result{}, fmt.Errorf("%w: payment %s", domain.ErrUnlinkedPayment, payment.ID)
	}

	result, err := e.apply(ctx, reservationID, payment)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordFailed()
		}
		return Result{}, err
	}
	return result, nil
}

// resolvePayment опрашивает шлюз. Опрос доводится до конца даже если
// вызывающий отвалился: параллельный дубликат запроса не должен начинать
// backoff с нуля.
func (e *Engine) resolvePayment(ctx context.Context, req Request) (domain.GatewayPayment, error) {
	pollCtx := context.WithoutCancel(ctx)

	switch {
	case req.PaymentID != "":
		return e.gateway.GetPayment(pollCtx, req.PaymentID)
	case req.OrderID != "":
		order, err := e.gateway.GetOrder(pollCtx, req.OrderID)
		if err != nil {
			return domain.GatewayPayment{}, err
		}
		return pickPayment(order.Payments)
	case req.PreferenceID != "":
		payments, err := e.gateway.SearchByPreference(pollCtx, req.PreferenceID)
		if err != nil {
			return domain.GatewayPayment{}, err
		}
		return pickPayment(payments)
	default:
		return domain.GatewayPayment{}, fmt.Errorf("%w: empty reconcile request", domain.ErrUnlinkedPayment)
	}
}

// pickPayment выбирает из нескольких платежей заказа репрезентативный:
// approved важнее любого другого, иначе берём первый.
func pickPayment(payments []domain.GatewayPayment) (domain.GatewayPayment, error) {
	if len(payments) == 0 {
		return domain.GatewayPayment{}, domain.ErrPaymentNotFound
	}
	for _, p := range payments {
		if p.Status == gatewayStatusApproved {
			return p, nil
		}
	}
	return payments[0], nil
}

// apply выполняет транзакционную часть: решение принимается по сравнению
// предыдущего сохранённого статуса с новым вычисленным внутри той же
// транзакции, что и мутация — а не по флагам вызывающего.
func (e *Engine) apply(ctx context.Context, reservationID string, payment domain.GatewayPayment) (Result, error) {
	var result Result
	var firstApproval bool
	var reverted bool

	err := e.store.WithTx(ctx, func(tx domain.Tx) error {
		res, err := tx.Reservations().Get(reservationID)
		if err != nil {
			return err
		}

		dec := decide(payment, expected{
			AmountMinor:  res.TotalPriceMinor,
			Currency:     res.Currency,
			Reference:    fmt.Sprintf("%s:%s", res.Kind, res.ID),
			EpsilonMinor: e.cfg.AmountEpsilonMinor,
			Sandbox:      e.cfg.SandboxMode,
		})

		prev := res.PaymentStatus
		next := dec.status

		if payment.Status == gatewayStatusApproved && !dec.verified {
			e.logger.WithFields(log.Fields{
				"reservation_id": res.ID,
				"payment_id":     payment.ID,
				"amount_minor":   payment.AmountMinor,
				"expected_minor": res.TotalPriceMinor,
				"currency":       payment.Currency,
			}).Warn("gateway approval failed verification, keeping reservation in process")
		}

		res.ExternalPaymentID = payment.ID

		switch {
		case prev == next:
			// Идемпотентный повтор: только подтверждаем применённое состояние.
			if err := tx.Reservations().Update(res); err != nil {
				return err
			}
		case next == domain.PaymentStatusApproved:
			if err := e.commitApproval(tx, &res); err != nil {
				return err
			}
			firstApproval = true
		case prev == domain.PaymentStatusApproved && next.IsReverting():
			if err := e.revertApproval(tx, &res, next); err != nil {
				return err
			}
			reverted = true
		default:
			// Информационное копирование статуса без движения стока.
			res.PaymentStatus = next
			if err := tx.Reservations().Update(res); err != nil {
				return err
			}
		}

		if firstApproval {
			e.enqueueApprovedEvent(tx, res.ID)
		}

		result = Result{
			ReservationID:     res.ID,
			Status:            res.PaymentStatus,
			HasValidationCode: res.ValidationCode != "",
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	switch {
	case firstApproval:
		if e.metrics != nil {
			e.metrics.RecordApproved()
		}
		e.logger.WithFields(log.Fields{
			"reservation_id": result.ReservationID,
			"payment_id":     payment.ID,
		}).Info("reservation approved, stock committed")
	case reverted:
		if e.metrics != nil {
			e.metrics.RecordReverted()
		}
		e.logger.WithFields(log.Fields{
			"reservation_id": result.ReservationID,
			"status":         result.Status,
		}).Info("approved reservation reverted, stock released")
	default:
		if e.metrics != nil {
			e.metrics.RecordNoop()
		}
	}

	return result, nil
}

// commitApproval фиксирует первый переход в approved: двигает сток
// и выпускает уникальный код валидации.
func (e *Engine) commitApproval(tx domain.Tx, res *domain.Reservation) error {
	switch res.Kind {
	case domain.KindVIP:
		if err := e.ledger.Commit(tx, domain.VIPCategory(res.VIPLocationID), res.TableCount); err != nil {
			return err
		}
		if err := tx.Slots().SetStatus(res.VIPLocationID, res.TableNumber, domain.SlotSold); err != nil {
			return err
		}
	default:
		if err := e.ledger.Commit(tx, domain.GeneralCategory(res.Gender), res.Quantity); err != nil {
			return err
		}
	}

	code, err := mintValidationCode(tx)
	if err != nil {
		return err
	}
	res.ValidationCode = code
	res.PaymentStatus = domain.PaymentStatusApproved
	return tx.Reservations().Update(*res)
}

// revertApproval симметрично снимает ранее зафиксированный сток.
func (e *Engine) revertApproval(tx domain.Tx, res *domain.Reservation, next domain.PaymentStatus) error {
	switch res.Kind {
	case domain.KindVIP:
		if err := e.ledger.Revert(tx, domain.VIPCategory(res.VIPLocationID), res.TableCount); err != nil {
			return err
		}
		if err := tx.Slots().SetStatus(res.VIPLocationID, res.TableNumber, domain.SlotAvailable); err != nil {
			return err
		}
	default:
		if err := e.ledger.Revert(tx, domain.GeneralCategory(res.Gender), res.Quantity); err != nil {
			return err
		}
	}

	res.PaymentStatus = next
	return tx.Reservations().Update(*res)
}

// enqueueApprovedEvent ставит событие для сервиса рассылки. Fire-and-forget:
// неудача не откатывает подтверждение.
func (e *Engine) enqueueApprovedEvent(tx domain.Tx, reservationID string) {
	payload, err := json.Marshal(map[string]interface{}{
		"reservation_id": reservationID,
		"ts":             time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		e.logger.WithError(err).WithField("reservation_id", reservationID).Error("marshal approved event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "reservation",
		AggregateID:   reservationID,
		EventType:     "ReservationApproved",
		Payload:       payload,
	}
	if _, err := tx.Outbox().Enqueue(msg); err != nil {
		e.logger.WithError(err).WithField("reservation_id", reservationID).Error("enqueue approved event failed")
	} else if e.metrics != nil {
		e.metrics.RecordOutboxEvent()
	}
}

// mintValidationCode выпускает уникальный 6-значный код с ограниченным
// числом попыток на коллизию.
func mintValidationCode(tx domain.Tx) (string, error) {
	for attempt := 0; attempt < codeMintAttempts; attempt++ {
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
