package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// queueEvent кладёт событие резервирования в outbox и возвращает сохранённую запись.
func queueEvent(t *testing.T, repo domain.OutboxRepository, aggregateID, eventType string) domain.OutboxMessage {
	t.Helper()

	stored, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "reservation",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       []byte(`{"reservation_id":"` + aggregateID + `"}`),
	})
	if err != nil {
		t.Fatalf("enqueue %s for %s: %v", eventType, aggregateID, err)
	}
	return stored
}

func TestOutboxRepository_PullFollowsInsertionOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Outbox()

	want := []string{"res-a", "res-b", "res-c"}
	for _, id := range want {
		queueEvent(t, repo, id, "ReservationApproved")
		time.Sleep(2 * time.Millisecond)
	}

	pending, err := repo.PullPending(0)
	if err != nil {
		t.Fatalf("pull pending with default limit: %v", err)
	}
	if len(pending) != len(want) {
		t.Fatalf("expected %d pending rows, got %d", len(want), len(pending))
	}
	for i, msg := range pending {
		if msg.AggregateID != want[i] {
			t.Fatalf("position %d: expected aggregate %q, got %q", i, want[i], msg.AggregateID)
		}
		if msg.ID == "" {
			t.Fatalf("position %d: row came back without generated id", i)
		}
	}

	short, err := repo.PullPending(2)
	if err != nil {
		t.Fatalf("pull pending with limit 2: %v", err)
	}
	if len(short) != 2 || short[0].AggregateID != "res-a" {
		t.Fatalf("limit 2 should return oldest two rows, got %+v", short)
	}
}

func TestOutboxRepository_FinishedRowsLeavePendingSet(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Outbox()

	delivered := queueEvent(t, repo, "res-sent", "ReservationApproved")
	dead := queueEvent(t, repo, "res-dead", "ReservationArchived")

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats before marks: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected 2 pending before marks, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("two pending rows must produce a non-zero oldest timestamp")
	}

	if err := repo.MarkSent(delivered.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(dead.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	left, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending after marks: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("sent and failed rows must not show up as pending, got %d", len(left))
	}

	stats, err = repo.Stats()
	if err != nil {
		t.Fatalf("stats after marks: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("empty backlog expected after marks, got %+v", stats)
	}
}

func TestOutboxRepository_EnqueueKeepsCallerID(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Outbox()

	stored, err := repo.Enqueue(domain.OutboxMessage{
		ID:            "outbox-caller-id",
		AggregateType: "reservation",
		AggregateID:   "res-keep",
		EventType:     "ReservationApproved",
		Payload:       []byte(`{"reservation_id":"res-keep"}`),
	})
	if err != nil {
		t.Fatalf("enqueue with explicit id: %v", err)
	}
	if stored.ID != "outbox-caller-id" {
		t.Fatalf("repository must not replace caller-provided id, got %q", stored.ID)
	}
}

func TestOutboxRepository_MarkMissingRowFails(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Outbox()

	for _, mark := range []struct {
		name string
		fn   func(string) error
	}{
		{"sent", repo.MarkSent},
		{"failed", repo.MarkFailed},
	} {
		if err := mark.fn("no-such-row"); !errors.Is(err, domain.ErrOutboxPublish) {
			t.Fatalf("mark %s on missing row: expected ErrOutboxPublish, got %v", mark.name, err)
		}
	}
}
