package domain

import "time"

// Category — ключ стоковой корзины: general×пол либо vip×локация.
type Category struct {
	Kind       Kind
	Gender     Gender // заполнен только для general
	LocationID string // заполнен только для vip
}

// GeneralCategory возвращает ключ корзины общего входа по полу.
func GeneralCategory(gender Gender) Category {
	return Category{Kind: KindGeneral, Gender: gender}
}

// VIPCategory возвращает ключ корзины VIP-локации.
func VIPCategory(locationID string) Category {
	return Category{Kind: KindVIP, LocationID: locationID}
}

// StockConfig хранит счётчики лимита и проданного по одной категории.
// Инвариант 0 <= Sold <= Limit проверяется в той же транзакции,
// что и сопутствующая запись резервации.
type StockConfig struct {
	ID             string
	Category       Category
	UnitPriceMinor int64
	Currency       string
	Limit          int
	Sold           int
	// TableUnitSize — человек на стол; участвует в пересчёте VIP-занятости
	// в общий лимит мероприятия. Для general равен 0.
	TableUnitSize int
	UpdatedAt     time.Time
}

// Remaining возвращает остаток по категории.
func (c *StockConfig) Remaining() int {
	if c.Sold >= c.Limit {
		return 0
	}
	return c.Limit - c.Sold
}

// Validate проверяет согласованность счётчиков конфигурации.
func (c *StockConfig) Validate() []error {
	var errs []error
	if c.Limit < 0 {
		errs = append(errs, ErrStockLimitInvalid)
	}
	if c.Sold < 0 || c.Sold > c.Limit {
		errs = append(errs, ErrStockInvariantViolation)
	}
	return errs
}

// Event — единственное активное мероприятие, в рамках которого идут продажи.
type Event struct {
	ID            string
	Name          string
	StartsAt      time.Time
	Active        bool
	TotalCapacity int // общий лимит людей с учётом VIP в человеко-эквивалентах
}

// SlotStatus описывает занятость конкретного VIP-стола.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotReserved  SlotStatus = "reserved"
	SlotSold      SlotStatus = "sold"
	SlotBlocked   SlotStatus = "blocked"
)

// VIPLocation — физическая VIP-зона с собственной нумерацией столов.
// GlobalRangeStart/End задают её отрезок в сквозной нумерации всех зон;
// нулевой отрезок означает, что зона в сквозной схеме не участвует.
type VIPLocation struct {
	ID               string
	Name             string
	TableUnitSize    int
	GlobalRangeStart int
	GlobalRangeEnd   int
}

// ContainsGlobal сообщает, попадает ли сквозной номер в отрезок локации.
func (l *VIPLocation) ContainsGlobal(n int) bool {
	return l.GlobalRangeStart > 0 && n >= l.GlobalRangeStart && n <= l.GlobalRangeEnd
}

// VIPSlot — один нумерованный стол внутри локации; авторитетный источник
// занятости столов.
type VIPSlot struct {
	LocationID  string
	TableNumber int
	Status      SlotStatus
	Capacity    int
	PriceMinor  int64
	UpdatedAt   time.Time
}
