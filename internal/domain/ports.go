package domain

import (
	"context"
	"time"
)

// Store — транзакционное хранилище. Все проверки ёмкости, изменения счётчиков
// и переходы статусов выполняются внутри одного WithTx; хранилище обязано
// сериализовать конфликтующие записи по одной строке/счётчику.
type Store interface {
	// WithTx выполняет fn в рамках одной транзакции; ошибка fn откатывает всё.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx даёт доступ к репозиториям, привязанным к открытой транзакции.
type Tx interface {
	Reservations() ReservationRepository
	Stock() StockRepository
	Slots() SlotRepository
	Archive() ArchiveRepository
	Events() EventRepository
	Discounts() DiscountRepository
	Outbox() OutboxRepository
}

// ReservationRepository описывает требования к хранилищу живых резерваций.
type ReservationRepository interface {
	// Create сохраняет новую резервацию; ErrUniqueCollision при занятом ID или QR.
	Create(res Reservation) error
	// Get возвращает резервацию или ErrReservationNotFound.
	Get(id string) (Reservation, error)
	// Update перезаписывает резервацию целиком.
	Update(res Reservation) error
	// Delete удаляет живую строку; ErrReservationNotFound, если её уже нет.
	Delete(id string) error
	// ListStale возвращает до limit резерваций в нетерминальных статусах,
	// у которых истёк ExpiresAt либо (при нулевом ExpiresAt) PurchaseDate старше cutoff.
	ListStale(now time.Time, cutoff time.Time, limit int) ([]Reservation, error)
	// CountApprovedPersons считает занятых людей по всем approved-резервациям
	// в человеко-эквивалентах (VIP-столы умножаются на вместимость).
	CountApprovedPersons() (int, error)
	// ExistsValidationCode проверяет занятость кода валидации.
	ExistsValidationCode(code string) (bool, error)
	// ActiveOnTable сообщает, держит ли стол активная (approved|in_process) резервация.
	ActiveOnTable(locationID string, tableNumber int) (bool, error)
}

// StockRepository управляет счётчиками limit/sold по категориям.
type StockRepository interface {
	// Get возвращает конфигурацию категории или ErrConfigMissing.
	Get(category Category) (StockConfig, error)
	// List возвращает все конфигурации.
	List() ([]StockConfig, error)
	// AdjustSold меняет sold на delta; выход за [0, limit] —
	// ErrStockInvariantViolation без применения изменения.
	AdjustSold(category Category, delta int) error
}

// SlotRepository управляет занятостью VIP-столов.
type SlotRepository interface {
	// Get возвращает стол или ErrSlotUnavailable, если его нет.
	Get(locationID string, tableNumber int) (VIPSlot, error)
	// ListByLocation возвращает столы локации по возрастанию номера.
	ListByLocation(locationID string) ([]VIPSlot, error)
	// SetStatus переводит стол в новый статус.
	SetStatus(locationID string, tableNumber int, status SlotStatus) error
	// Locations возвращает все VIP-локации.
	Locations() ([]VIPLocation, error)
	// Location возвращает локацию по ID или ErrLocationRequired, если её нет.
	Location(id string) (VIPLocation, error)
}

// ArchiveRepository хранит неизменяемые снимки удалённых резерваций.
type ArchiveRepository interface {
	Create(snap ArchiveSnapshot) error
	// Get возвращает снимок или ErrArchiveNotFound.
	Get(id string) (ArchiveSnapshot, error)
	List(filter ArchiveFilter) ([]ArchiveSnapshot, int, error)
	Delete(id string) error
}

// EventRepository даёт доступ к мероприятию, в рамках которого идут продажи.
type EventRepository interface {
	// Active возвращает активное мероприятие или ErrNoActiveEvent.
	Active() (Event, error)
}

// DiscountRepository возвращает действующие правила скидок.
type DiscountRepository interface {
	ListActive(kind Kind) ([]DiscountRule, error)
}

// GatewayPayment — авторитетное состояние платежа во внешнем шлюзе.
// Суммы приводятся к минимальным денежным единицам на границе адаптера.
type GatewayPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	Currency          string
	AmountMinor       int64
	ExternalReference string
	LiveMode          bool
	Metadata          map[string]string
}

// GatewayOrder — заказ шлюза, объединяющий несколько платежей.
type GatewayOrder struct {
	ID       string
	Payments []GatewayPayment
}

// PaymentGateway описывает запросы к внешнему платёжному шлюзу.
// Чистые чтения: адаптер ничего не меняет локально.
type PaymentGateway interface {
	// GetPayment возвращает платёж; «ещё не виден» обязан быть retryable.
	GetPayment(ctx context.Context, paymentID string) (GatewayPayment, error)
	// GetOrder возвращает заказ со всеми его платежами.
	GetOrder(ctx context.Context, orderID string) (GatewayOrder, error)
	// SearchByPreference ищет платежи, созданные из клиентского preference.
	SearchByPreference(ctx context.Context, preferenceID string) ([]GatewayPayment, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
