package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	"github.com/vladislavdragonenkov/boxoffice/internal/storage/memory"
)

func newPending(id string) domain.Reservation {
	now := time.Now().UTC()
	return domain.Reservation{
		ID:              id,
		Kind:            domain.KindGeneral,
		Gender:          domain.GenderMale,
		Quantity:        2,
		TotalPriceMinor: 20000,
		Currency:        "ARS",
		Customer:        domain.Customer{FullName: "Juan Perez"},
		PaymentStatus:   domain.PaymentStatusPending,
		QRCode:          "qr-" + id,
		PurchaseDate:    now,
		ExpiresAt:       now.Add(30 * time.Minute),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	store := memory.NewStore()
	store.SeedStock(domain.StockConfig{
		ID:       "stk-m",
		Category: domain.GeneralCategory(domain.GenderMale),
		Limit:    10,
	})

	boom := errors.New("boom")
	err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		if err := tx.Reservations().Create(newPending("res-1")); err != nil {
			return err
		}
		if err := tx.Stock().AdjustSold(domain.GeneralCategory(domain.GenderMale), 2); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = store.WithTx(context.Background(), func(tx domain.Tx) error {
		if _, err := tx.Reservations().Get("res-1"); !errors.Is(err, domain.ErrReservationNotFound) {
			t.Fatalf("reservation must be rolled back, got %v", err)
		}
		cfg, err := tx.Stock().Get(domain.GeneralCategory(domain.GenderMale))
		if err != nil {
			t.Fatalf("get stock: %v", err)
		}
		if cfg.Sold != 0 {
			t.Fatalf("sold must be rolled back to 0, got %d", cfg.Sold)
		}
		return nil
	})
}

func TestStockRepo_AdjustSoldBounds(t *testing.T) {
	store := memory.NewStore()
	cat := domain.VIPCategory("loc-1")
	store.SeedStock(domain.StockConfig{ID: "stk-v", Category: cat, Limit: 10, Sold: 10})

	err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		return tx.Stock().AdjustSold(cat, 1)
	})
	if !errors.Is(err, domain.ErrStockInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}

	err = store.WithTx(context.Background(), func(tx domain.Tx) error {
		return tx.Stock().AdjustSold(cat, -11)
	})
	if !errors.Is(err, domain.ErrStockInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}

	_ = store.WithTx(context.Background(), func(tx domain.Tx) error {
		cfg, _ := tx.Stock().Get(cat)
		if cfg.Sold != 10 {
			t.Fatalf("sold must stay 10, got %d", cfg.Sold)
		}
		return nil
	})
}

func TestReservationRepo_ListStale(t *testing.T) {
	store := memory.NewStore()
	now := time.Now().UTC()

	expired := newPending("res-expired")
	expired.ExpiresAt = now.Add(-time.Minute)

	fresh := newPending("res-fresh")
	fresh.ExpiresAt = now.Add(time.Hour)

	noExpiry := newPending("res-old")
	noExpiry.ExpiresAt = time.Time{}
	noExpiry.PurchaseDate = now.Add(-48 * time.Hour)

	approved := newPending("res-approved")
	approved.ExpiresAt = now.Add(-time.Minute)
	approved.PaymentStatus = domain.PaymentStatusApproved

	err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		for _, res := range []domain.Reservation{expired, fresh, noExpiry, approved} {
			if err := tx.Reservations().Create(res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_ = store.WithTx(context.Background(), func(tx domain.Tx) error {
		stale, err := tx.Reservations().ListStale(now, now.Add(-24*time.Hour), 10)
		if err != nil {
			t.Fatalf("list stale: %v", err)
		}
		if len(stale) != 2 {
			t.Fatalf("expected 2 stale rows, got %d", len(stale))
		}
		// Самые старые первыми.
		if stale[0].ID != "res-old" || stale[1].ID != "res-expired" {
			t.Fatalf("unexpected order: %s, %s", stale[0].ID, stale[1].ID)
		}
		return nil
	})
}

func TestReservationRepo_QRCollision(t *testing.T) {
	store := memory.NewStore()
	err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		if err := tx.Reservations().Create(newPending("res-1")); err != nil {
			return err
		}
		dup := newPending("res-2")
		dup.QRCode = "qr-res-1"
		return tx.Reservations().Create(dup)
	})
	if !errors.Is(err, domain.ErrUniqueCollision) {
		t.Fatalf("expected unique collision, got %v", err)
	}
}

func TestArchiveRepo_ListPagination(t *testing.T) {
	store := memory.NewStore()
	base := time.Now().UTC()

	err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		for i := 0; i < 5; i++ {
			snap := domain.ArchiveSnapshot{
				ID:          "arc-" + string(rune('a'+i)),
				Reservation: newPending("res-" + string(rune('a'+i))),
				ArchivedAt:  base.Add(time.Duration(i) * time.Minute),
				Reason:      domain.ArchiveReasonPaymentTimeout,
			}
			if err := tx.Archive().Create(snap); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_ = store.WithTx(context.Background(), func(tx domain.Tx) error {
		page, total, err := tx.Archive().List(domain.ArchiveFilter{
			Reason: domain.ArchiveReasonPaymentTimeout,
			Offset: 1,
			Limit:  2,
		})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 5 {
			t.Fatalf("expected total 5, got %d", total)
		}
		if len(page) != 2 {
			t.Fatalf("expected page of 2, got %d", len(page))
		}
		// Свежие первыми, offset пропускает самый свежий.
		if page[0].ID != "arc-d" || page[1].ID != "arc-c" {
			t.Fatalf("unexpected page: %s, %s", page[0].ID, page[1].ID)
		}
		return nil
	})
}

func TestOutbox_StandaloneAndTx(t *testing.T) {
	store := memory.NewStore()

	err := store.WithTx(context.Background(), func(tx domain.Tx) error {
		_, err := tx.Outbox().Enqueue(domain.OutboxMessage{
			AggregateType: "reservation",
			AggregateID:   "res-1",
			EventType:     "ReservationApproved",
			Payload:       []byte(`{"reservation_id":"res-1"}`),
		})
		return err
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	outbox := store.Outbox()
	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}

	if err := outbox.MarkSent(pending[0].ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	stats, err := outbox.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected empty backlog, got %d", stats.PendingCount)
	}
}
