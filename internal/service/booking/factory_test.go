package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/stock"
	"github.com/vladislavdragonenkov/boxoffice/internal/storage/memory"
)

func newFactory(t *testing.T) (*Factory, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.SeedEvent(domain.Event{ID: "ev-1", Name: "Fiesta", Active: true, TotalCapacity: 100})
	store.SeedStock(domain.StockConfig{
		ID:             "stk-m",
		Category:       domain.GeneralCategory(domain.GenderMale),
		UnitPriceMinor: 10000,
		Currency:       "ARS",
		Limit:          50,
	})
	store.SeedStock(domain.StockConfig{
		ID:             "stk-f",
		Category:       domain.GeneralCategory(domain.GenderFemale),
		UnitPriceMinor: 8000,
		Currency:       "ARS",
		Limit:          50,
	})
	store.SeedLocation(domain.VIPLocation{ID: "loc-1", Name: "Terraza", TableUnitSize: 10, GlobalRangeStart: 1, GlobalRangeEnd: 20})
	store.SeedStock(domain.StockConfig{
		ID:             "stk-vip",
		Category:       domain.VIPCategory("loc-1"),
		UnitPriceMinor: 120000,
		Currency:       "ARS",
		Limit:          10,
		TableUnitSize:  10,
	})
	store.SeedSlot(domain.VIPSlot{LocationID: "loc-1", TableNumber: 4, Capacity: 10, PriceMinor: 120000})

	ledger := stock.NewLedger(nil)
	return NewFactory(store, ledger, 30*time.Minute, nil), store
}

func customer() domain.Customer {
	return domain.Customer{FullName: "Juan Perez", DNI: "30123456", Email: "juan@example.com"}
}

func TestCreate_GeneralPending(t *testing.T) {
	factory, store := newFactory(t)

	res, err := factory.Create(context.Background(), CreateInput{
		Kind:     domain.KindGeneral,
		Gender:   domain.GenderMale,
		Quantity: 3,
		Customer: customer(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if res.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", res.PaymentStatus)
	}
	if res.TotalPriceMinor != 30000 {
		t.Fatalf("expected 30000, got %d", res.TotalPriceMinor)
	}
	if res.ValidationCode != "" {
		t.Fatal("validation code must not exist before approval")
	}
	if res.ExpiresAt.Before(res.PurchaseDate) {
		t.Fatal("expiry must be after purchase date")
	}

	// Sold не растёт при создании: только при approved.
	_ = store.WithTx(context.Background(), func(tx domain.Tx) error {
		cfg, _ := tx.Stock().Get(domain.GeneralCategory(domain.GenderMale))
		if cfg.Sold != 0 {
			t.Fatalf("sold must stay 0 after create, got %d", cfg.Sold)
		}
		return nil
	})
}

func TestCreate_VIPReservesSlot(t *testing.T) {
	factory, store := newFactory(t)

	res, err := factory.Create(context.Background(), CreateInput{
		Kind:          domain.KindVIP,
		VIPLocationID: "loc-1",
		TableNumber:   4,
		Customer:      customer(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.TableCount != 1 || res.TotalPriceMinor != 120000 {
		t.Fatalf("unexpected vip reservation: %+v", res)
	}

	_ = store.WithTx(context.Background(), func(tx domain.Tx) error {
		slot, _ := tx.Slots().Get("loc-1", 4)
		if slot.Status != domain.SlotReserved {
			t.Fatalf("slot must be reserved, got %s", slot.Status)
		}
		cfg, _ := tx.Stock().Get(domain.VIPCategory("loc-1"))
		if cfg.Sold != 0 {
			t.Fatalf("vip sold must stay 0 after create, got %d", cfg.Sold)
		}
		return nil
	})

	// Второй выбор того же стола блокируется статусом reserved.
	_, err = factory.Create(context.Background(), CreateInput{
		Kind:          domain.KindVIP,
		VIPLocationID: "loc-1",
		TableNumber:   4,
		Customer:      customer(),
	})
	if !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable, got %v", err)
	}
}

func TestCreate_InsufficientCategoryCapacity(t *testing.T) {
	factory, store := newFactory(t)
	store.SeedStock(domain.StockConfig{
		ID:             "stk-vip",
		Category:       domain.VIPCategory("loc-1"),
		UnitPriceMinor: 120000,
		Currency:       "ARS",
		Limit:          10,
		Sold:           10,
		TableUnitSize:  10,
	})

	_, err := factory.Create(context.Background(), CreateInput{
		Kind:          domain.KindVIP,
		VIPLocationID: "loc-1",
		TableNumber:   4,
		Customer:      customer(),
	})
	if !errors.Is(err, domain.ErrInsufficientCapacity) {
		t.Fatalf("expected insufficient capacity, got %v", err)
	}

	// Счётчики не изменились.
	_ = store.WithTx(context.Background(), func(tx domain.Tx) error {
		cfg, _ := tx.Stock().Get(domain.VIPCategory("loc-1"))
		if cfg.Sold != 10 || cfg.Limit != 10 {
			t.Fatalf("counters must be untouched, got %+v", cfg)
		}
		return nil
	})
}

func TestCreate_TotalCapCountsVIPPersons(t *testing.T) {
	factory, store := newFactory(t)
	store.SeedEvent(domain.Event{ID: "ev-1", Active: true, TotalCapacity: 12})

	// Approved VIP-стол на 10 человек уже занимает почти весь общий лимит.
	seed := domain.Reservation{
		ID:            "res-vip",
		Kind:          domain.KindVIP,
		TableCount:    1,
		VIPLocationID: "loc-1",
		TableNumber:   4,
		Currency:      "ARS",
		Customer:      customer(),
		PaymentStatus: domain.PaymentStatusApproved,
		QRCode:        "qr-vip",
		PurchaseDate:  time.Now().UTC(),
	}
	if err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		return tx.Reservations().Create(seed)
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// 3 человека не влезают (10 + 3 > 12), хотя в подкатегории места есть.
	_, err := factory.Create(context.Background(), CreateInput{
		Kind:     domain.KindGeneral,
		Gender:   domain.GenderMale,
		Quantity: 3,
		Customer: customer(),
	})
	if !errors.Is(err, domain.ErrInsufficientCapacity) {
		t.Fatalf("expected insufficient capacity via total cap, got %v", err)
	}

	// 2 человека влезают.
	if _, err := factory.Create(context.Background(), CreateInput{
		Kind:     domain.KindGeneral,
		Gender:   domain.GenderMale,
		Quantity: 2,
		Customer: customer(),
	}); err != nil {
		t.Fatalf("expected success within total cap, got %v", err)
	}
}

func TestCreate_ConfigMissing(t *testing.T) {
	factory, _ := newFactory(t)

	_, err := factory.Create(context.Background(), CreateInput{
		Kind:          domain.KindVIP,
		VIPLocationID: "loc-unknown",
		TableNumber:   1,
		Customer:      customer(),
	})
	if !errors.Is(err, domain.ErrConfigMissing) {
		t.Fatalf("expected config missing, got %v", err)
	}
}

func TestCreate_NoActiveEvent(t *testing.T) {
	factory, store := newFactory(t)
	store.SeedEvent(domain.Event{ID: "ev-1", Active: false})

	_, err := factory.Create(context.Background(), CreateInput{
		Kind:     domain.KindGeneral,
		Gender:   domain.GenderMale,
		Quantity: 1,
		Customer: customer(),
	})
	if !errors.Is(err, domain.ErrNoActiveEvent) {
		t.Fatalf("expected no active event, got %v", err)
	}
}

func TestQuoteGeneral_DiscountIsAdvisory(t *testing.T) {
	factory, store := newFactory(t)
	store.SeedDiscount(domain.DiscountRule{
		ID:     "r1",
		Kind:   domain.KindGeneral,
		MinQty: 4,
		Type:   domain.DiscountPercent,
		Value:  10,
		Active: true,
	})

	quote, err := factory.QuoteGeneral(context.Background(), domain.GenderMale, 4)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.SubtotalMinor != 40000 || quote.TotalMinor != 36000 {
		t.Fatalf("unexpected quote: %+v", quote)
	}

	// Создание тем не менее использует полную цену: скидка только справочная.
	res, err := factory.Create(context.Background(), CreateInput{
		Kind:     domain.KindGeneral,
		Gender:   domain.GenderMale,
		Quantity: 4,
		Customer: customer(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.TotalPriceMinor != 40000 {
		t.Fatalf("server-side discount must not be applied, got %d", res.TotalPriceMinor)
	}
}
