package domain

import "errors"

var (
	// Ошибка отсутствующего имени покупателя.
	ErrCustomerNameRequired = errors.New("customer full name is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отрицательной суммы резервации.
	ErrAmountNegative = errors.New("total price must be non-negative")
	// Ошибка некорректного количества (людей или столов).
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// Ошибка некорректной подкатегории общего входа.
	ErrGenderInvalid = errors.New("gender must be male or female")
	// Ошибка отсутствующей VIP-локации.
	ErrLocationRequired = errors.New("vip location id is required")
	// Ошибка некорректного номера стола.
	ErrTableNumberInvalid = errors.New("table number must be greater than zero")
	// Ошибка неизвестного вида резервации.
	ErrKindInvalid = errors.New("reservation kind must be general or vip")
	// Ошибка отрицательного лимита в конфигурации стока.
	ErrStockLimitInvalid = errors.New("stock limit must be non-negative")

	// ErrInsufficientCapacity — запрошенное количество превышает остаток по категории
	// либо общий лимит мероприятия. Бизнес-ошибка, возвращается вызывающему сразу.
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	// ErrConfigMissing — для категории нет ценовой конфигурации.
	ErrConfigMissing = errors.New("stock config missing for category")
	// ErrNoActiveEvent — продажи не идут: нет активного мероприятия.
	ErrNoActiveEvent = errors.New("no active event")
	// ErrUnlinkedPayment — платёж шлюза не содержит ссылки на резервацию.
	ErrUnlinkedPayment = errors.New("payment is not linked to a reservation")
	// ErrGatewayUnavailable — шлюз недоступен после всех повторов; вызывающему
	// возвращается сигнал «повторите позже», а не жёсткая ошибка.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable, retry later")
	// ErrPaymentNotFound — шлюз не знает такого платежа (после всех повторов на лаг видимости).
	ErrPaymentNotFound = errors.New("payment not found in gateway")
	// ErrTableTaken — целевой стол занят другой активной резервацией.
	ErrTableTaken = errors.New("table is taken by an active reservation")
	// ErrTableOutOfRange — сквозной номер стола не попадает ни в один отрезок локаций.
	ErrTableOutOfRange = errors.New("table number is out of location range")
	// ErrSlotUnavailable — стол недоступен для резервирования (blocked/sold/reserved).
	ErrSlotUnavailable = errors.New("vip slot is not available")
	// ErrUniqueCollision — коллизия уникального кода; внутри системы повторяется
	// с регенерацией, наружу уходит только после исчерпания попыток.
	ErrUniqueCollision = errors.New("unique code collision")
	// ErrArchiveNotFound — архивная запись не найдена.
	ErrArchiveNotFound = errors.New("archive snapshot not found")
	// ErrReservationNotFound — живой резервации с таким идентификатором нет.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrStockInvariantViolation — счётчик вышел бы за [0, limit]. Всегда признак бага
	// в леджере, не бизнес-состояние: логируется громко, транзакция откатывается.
	ErrStockInvariantViolation = errors.New("stock counter invariant violation")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsRetryable сообщает, имеет ли смысл повторить операцию позже.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

// IsInvariantViolation проверяет, является ли ошибка нарушением инварианта стока.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrStockInvariantViolation)
}
