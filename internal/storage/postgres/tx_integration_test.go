package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

func seedIntegrationStock(t *testing.T, store *Store, cat domain.Category, limit, sold int) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := store.DB().ExecContext(ctx, `
		INSERT INTO stock_configs (
			id, kind, gender, location_id, unit_price_minor, currency,
			stock_limit, sold, table_unit_size
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, "stk-"+string(cat.Kind)+string(cat.Gender)+cat.LocationID,
		string(cat.Kind), string(cat.Gender), cat.LocationID,
		int64(10000), "ARS", limit, sold, 0)
	if err != nil {
		t.Fatalf("seed stock config: %v", err)
	}
}

func TestStore_PostgresWithTxReservationFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	now := time.Now().UTC().Truncate(time.Microsecond)
	res := domain.Reservation{
		ID:            "res-1",
		Kind:          domain.KindGeneral,
		Gender:        domain.GenderMale,
		Quantity:      2,
		Currency:      "ARS",
		Customer:      domain.Customer{FullName: "Juan Perez", DNI: "30123456", Email: "juan@example.com"},
		PaymentStatus: domain.PaymentStatusPending,
		QRCode:        "qr-1",
		PurchaseDate:  now,
		ExpiresAt:     now.Add(30 * time.Minute),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		return tx.Reservations().Create(res)
	})
	if err != nil {
		t.Fatalf("create in tx: %v", err)
	}

	err = store.WithTx(context.Background(), func(tx domain.Tx) error {
		got, err := tx.Reservations().Get("res-1")
		if err != nil {
			return err
		}
		if got.Quantity != 2 || got.Customer.DNI != "30123456" {
			t.Fatalf("round trip mismatch: %+v", got)
		}
		if got.ExpiresAt.IsZero() {
			t.Fatal("expires_at must survive round trip")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("read in tx: %v", err)
	}

	// Дубликат QR отклоняется уникальным индексом.
	dup := res
	dup.ID = "res-2"
	err = store.WithTx(context.Background(), func(tx domain.Tx) error {
		return tx.Reservations().Create(dup)
	})
	if !errors.Is(err, domain.ErrUniqueCollision) {
		t.Fatalf("expected ErrUniqueCollision on duplicate QR, got %v", err)
	}
}

func TestStore_PostgresWithTxRollback(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	boom := errors.New("boom")

	err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		if err := tx.Reservations().Create(domain.Reservation{
			ID:            "res-rollback",
			Kind:          domain.KindGeneral,
			Gender:        domain.GenderFemale,
			Quantity:      1,
			Currency:      "ARS",
			PaymentStatus: domain.PaymentStatusPending,
			QRCode:        "qr-rollback",
			PurchaseDate:  time.Now().UTC(),
			CreatedAt:     time.Now().UTC(),
			UpdatedAt:     time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}

	err = store.WithTx(context.Background(), func(tx domain.Tx) error {
		_, err := tx.Reservations().Get("res-rollback")
		return err
	})
	if !errors.Is(err, domain.ErrReservationNotFound) {
		t.Fatalf("rollback must discard insert, got %v", err)
	}
}

func TestStockRepository_PostgresAdjustSoldBounds(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	cat := domain.GeneralCategory(domain.GenderMale)
	seedIntegrationStock(t, store, cat, 10, 9)

	err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		if err := tx.Stock().AdjustSold(cat, 1); err != nil {
			t.Fatalf("adjust within limit: %v", err)
		}
		if err := tx.Stock().AdjustSold(cat, 1); !errors.Is(err, domain.ErrStockInvariantViolation) {
			t.Fatalf("expected invariant violation over limit, got %v", err)
		}
		if err := tx.Stock().AdjustSold(cat, -11); !errors.Is(err, domain.ErrStockInvariantViolation) {
			t.Fatalf("expected invariant violation below zero, got %v", err)
		}
		if err := tx.Stock().AdjustSold(domain.VIPCategory("loc-x"), 1); !errors.Is(err, domain.ErrConfigMissing) {
			t.Fatalf("expected ErrConfigMissing for unknown category, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}
