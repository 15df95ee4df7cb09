package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

type slotKey struct {
	locationID  string
	tableNumber int
}

// state — полное состояние in-memory хранилища. Клонируется перед каждой
// транзакцией, чтобы ошибка fn откатывала все изменения разом.
type state struct {
	reservations map[string]domain.Reservation
	stock        map[domain.Category]domain.StockConfig
	slots        map[slotKey]domain.VIPSlot
	locations    map[string]domain.VIPLocation
	archive      map[string]domain.ArchiveSnapshot
	discounts    []domain.DiscountRule
	event        *domain.Event
	outbox       map[string]*outboxRecord
}

func newState() state {
	return state{
		reservations: make(map[string]domain.Reservation),
		stock:        make(map[domain.Category]domain.StockConfig),
		slots:        make(map[slotKey]domain.VIPSlot),
		locations:    make(map[string]domain.VIPLocation),
		archive:      make(map[string]domain.ArchiveSnapshot),
		outbox:       make(map[string]*outboxRecord),
	}
}

func (st *state) clone() state {
	cp := newState()
	for k, v := range st.reservations {
		cp.reservations[k] = v
	}
	for k, v := range st.stock {
		cp.stock[k] = v
	}
	for k, v := range st.slots {
		cp.slots[k] = v
	}
	for k, v := range st.locations {
		cp.locations[k] = v
	}
	for k, v := range st.archive {
		cp.archive[k] = v
	}
	cp.discounts = append(cp.discounts, st.discounts...)
	if st.event != nil {
		ev := *st.event
		cp.event = &ev
	}
	for k, v := range st.outbox {
		rec := *v
		cp.outbox[k] = &rec
	}
	return cp
}

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
// Один мьютекс сериализует все транзакции, поэтому конфликтующие записи
// по одной строке/счётчику невозможны по построению.
type Store struct {
	mu sync.Mutex
	st state
}

// NewStore возвращает пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

// WithTx выполняет fn атомарно: при ошибке состояние откатывается целиком.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	backup := s.st.clone()
	if err := fn(&memTx{st: &s.st}); err != nil {
		s.st = backup
		return err
	}
	return nil
}

// Outbox возвращает standalone-репозиторий outbox для фонового воркера.
// В отличие от tx.Outbox(), методы берут мьютекс хранилища сами.
func (s *Store) Outbox() domain.OutboxRepository {
	return &lockedOutbox{store: s}
}

// SeedEvent задаёт активное мероприятие (для тестов и локального запуска).
func (s *Store) SeedEvent(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.event = &ev
}

// SeedStock добавляет конфигурацию стока.
func (s *Store) SeedStock(cfg domain.StockConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now().UTC()
	}
	s.st.stock[cfg.Category] = cfg
}

// SeedLocation добавляет VIP-локацию.
func (s *Store) SeedLocation(loc domain.VIPLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.locations[loc.ID] = loc
}

// SeedSlot добавляет VIP-стол.
func (s *Store) SeedSlot(slot domain.VIPSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.Status == "" {
		slot.Status = domain.SlotAvailable
	}
	s.st.slots[slotKey{slot.LocationID, slot.TableNumber}] = slot
}

// SeedDiscount добавляет правило скидки.
func (s *Store) SeedDiscount(rule domain.DiscountRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.discounts = append(s.st.discounts, rule)
}

// memTx реализует domain.Tx поверх состояния; мьютекс уже удерживается WithTx.
type memTx struct {
	st *state
}

func (t *memTx) Reservations() domain.ReservationRepository { return &reservationRepo{st: t.st} }
func (t *memTx) Stock() domain.StockRepository              { return &stockRepo{st: t.st} }
func (t *memTx) Slots() domain.SlotRepository               { return &slotRepo{st: t.st} }
func (t *memTx) Archive() domain.ArchiveRepository          { return &archiveRepo{st: t.st} }
func (t *memTx) Events() domain.EventRepository             { return &eventRepo{st: t.st} }
func (t *memTx) Discounts() domain.DiscountRepository       { return &discountRepo{st: t.st} }
func (t *memTx) Outbox() domain.OutboxRepository            { return &outboxRepo{st: t.st} }

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = (*memTx)(nil)
