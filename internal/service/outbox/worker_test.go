package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// fakeRepo отдаёт заранее заложенные pending-записи и запоминает,
// какие статусы им выставил воркер.
type fakeRepo struct {
	pending []domain.OutboxMessage
	sent    []string
	failed  []string
}

func (r *fakeRepo) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return msg, nil
}

func (r *fakeRepo) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit > 0 && limit < len(r.pending) {
		return append([]domain.OutboxMessage(nil), r.pending[:limit]...), nil
	}
	return append([]domain.OutboxMessage(nil), r.pending...), nil
}

func (r *fakeRepo) Stats() (domain.OutboxStats, error) {
	st := domain.OutboxStats{PendingCount: len(r.pending)}
	if len(r.pending) > 0 {
		st.OldestPendingAt = time.Now().UTC().Add(-time.Minute)
	}
	return st, nil
}

func (r *fakeRepo) MarkSent(id string) error {
	r.sent = append(r.sent, id)
	return nil
}

func (r *fakeRepo) MarkFailed(id string) error {
	r.failed = append(r.failed, id)
	return nil
}

// fakePublisher отвечает ошибками из script по порядку вызовов;
// исчерпав script, отвечает успехом.
type fakePublisher struct {
	mu       sync.Mutex
	script   []error
	received []domain.OutboxMessage
}

func (p *fakePublisher) Publish(msg domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, msg)
	if len(p.script) == 0 {
		return nil
	}
	err := p.script[0]
	p.script = p.script[1:]
	return err
}

func (p *fakePublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.received)
}

func (p *fakePublisher) last() domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received[len(p.received)-1]
}

var (
	_ domain.OutboxRepository = (*fakeRepo)(nil)
	_ domain.OutboxPublisher  = (*fakePublisher)(nil)
)

func approvalMessage(n string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            "out-" + n,
		AggregateType: "reservation",
		AggregateID:   "res-" + n,
		EventType:     "ReservationApproved",
		Payload:       []byte(`{"reservation_id":"res-` + n + `"}`),
	}
}

func TestWorker_DrainOnce_PublishesAndMarksSent(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{pending: []domain.OutboxMessage{approvalMessage("1"), approvalMessage("2")}}
	pub := &fakePublisher{}

	w := NewWorker(repo, pub, WithRetryBaseDelay(0))
	if got := w.DrainOnce(context.Background()); got != 2 {
		t.Fatalf("expected 2 published, got %d", got)
	}

	if len(repo.sent) != 2 || repo.sent[0] != "out-1" || repo.sent[1] != "out-2" {
		t.Fatalf("unexpected sent marks: %v", repo.sent)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("unexpected failed marks: %v", repo.failed)
	}
}

func TestWorker_DrainOnce_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{pending: []domain.OutboxMessage{approvalMessage("1")}}
	pub := &fakePublisher{script: []error{
		errors.New("broker hiccup"),
		errors.New("broker hiccup"),
	}}

	w := NewWorker(repo, pub, WithRetryBaseDelay(0), WithMaxAttempts(3))
	if got := w.DrainOnce(context.Background()); got != 1 {
		t.Fatalf("expected 1 published, got %d", got)
	}

	if pub.calls() != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", pub.calls())
	}
	if len(repo.sent) != 1 || len(repo.failed) != 0 {
		t.Fatalf("unexpected marks: sent=%v failed=%v", repo.sent, repo.failed)
	}
}

func TestWorker_DrainOnce_ExhaustedRecordGoesToDLQ(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{pending: []domain.OutboxMessage{approvalMessage("1")}}
	pub := &fakePublisher{script: []error{
		errors.New("broker down"),
		errors.New("broker down"),
		errors.New("broker down"),
	}}
	dlq := &fakePublisher{}

	w := NewWorker(repo, pub,
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
		WithDLQPublisher(dlq),
	)
	if got := w.DrainOnce(context.Background()); got != 0 {
		t.Fatalf("expected 0 published, got %d", got)
	}

	if pub.calls() != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", pub.calls())
	}
	if len(repo.failed) != 1 || repo.failed[0] != "out-1" {
		t.Fatalf("expected out-1 marked failed, got %v", repo.failed)
	}
	if dlq.calls() != 1 {
		t.Fatalf("expected 1 dlq publish, got %d", dlq.calls())
	}

	var env dlqEnvelope
	if err := json.Unmarshal(dlq.last().Payload, &env); err != nil {
		t.Fatalf("dlq payload is not an envelope: %v", err)
	}
	if env.OutboxID != "out-1" || env.PublishError == "" {
		t.Fatalf("dlq envelope lost context: %+v", env)
	}
	if string(env.Payload) != `{"reservation_id":"res-1"}` {
		t.Fatalf("dlq envelope lost original payload: %s", env.Payload)
	}
}

func TestWorker_DrainOnce_HonoursBatchSize(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{pending: []domain.OutboxMessage{
		approvalMessage("1"), approvalMessage("2"), approvalMessage("3"),
	}}
	pub := &fakePublisher{}

	w := NewWorker(repo, pub, WithRetryBaseDelay(0), WithBatchSize(2))
	if got := w.DrainOnce(context.Background()); got != 2 {
		t.Fatalf("expected batch of 2, got %d", got)
	}
}

func TestWorker_Backoff_DoublesAndCaps(t *testing.T) {
	t.Parallel()

	w := NewWorker(&fakeRepo{}, &fakePublisher{}, WithRetryBaseDelay(40*time.Millisecond))

	if d := w.backoff(1); d != 40*time.Millisecond {
		t.Fatalf("attempt 1: got %v", d)
	}
	if d := w.backoff(2); d != 80*time.Millisecond {
		t.Fatalf("attempt 2: got %v", d)
	}
	if d := w.backoff(40); d != maxRetryDelay {
		t.Fatalf("large attempt must cap at %v, got %v", maxRetryDelay, d)
	}
}

func TestWorker_Run_StopsOnCancel(t *testing.T) {
	t.Parallel()

	w := NewWorker(&fakeRepo{}, &fakePublisher{},
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
