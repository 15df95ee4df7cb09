package memory

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepo — реализация OutboxRepository внутри транзакции (мьютекс уже взят).
type outboxRepo struct {
	st *state
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его идентификатор.
func (r *outboxRepo) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.st.outbox[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    "pending",
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending`, старые первыми.
func (r *outboxRepo) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	pending := make([]*outboxRecord, 0, len(r.st.outbox))
	for _, rec := range r.st.outbox {
		if rec.status == "pending" {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].createdAt.Equal(pending[j].createdAt) {
			return pending[i].createdAt.Before(pending[j].createdAt)
		}
		return pending[i].msg.ID < pending[j].msg.ID
	})

	result := make([]domain.OutboxMessage, 0, limit)
	for _, rec := range pending {
		result = append(result, rec.msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Stats возвращает размер и возраст backlog.
func (r *outboxRepo) Stats() (domain.OutboxStats, error) {
	stats := domain.OutboxStats{}
	for _, rec := range r.st.outbox {
		if rec.status != "pending" {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepo) MarkSent(id string) error {
	return r.mark(id, "sent")
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepo) MarkFailed(id string) error {
	return r.mark(id, "failed")
}

func (r *outboxRepo) mark(id, status string) error {
	rec, ok := r.st.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	rec.status = status
	rec.attemptCnt++
	rec.updatedAt = time.Now().UTC()
	return nil
}

var _ domain.OutboxRepository = (*outboxRepo)(nil)

// lockedOutbox — standalone-вариант для фонового воркера: берёт мьютекс
// хранилища на каждый вызов.
type lockedOutbox struct {
	store *Store
}

func (l *lockedOutbox) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return (&outboxRepo{st: &l.store.st}).Enqueue(msg)
}

func (l *lockedOutbox) PullPending(limit int) ([]domain.OutboxMessage, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return (&outboxRepo{st: &l.store.st}).PullPending(limit)
}

func (l *lockedOutbox) Stats() (domain.OutboxStats, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return (&outboxRepo{st: &l.store.st}).Stats()
}

func (l *lockedOutbox) MarkSent(id string) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return (&outboxRepo{st: &l.store.st}).MarkSent(id)
}

func (l *lockedOutbox) MarkFailed(id string) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return (&outboxRepo{st: &l.store.st}).MarkFailed(id)
}

var _ domain.OutboxRepository = (*lockedOutbox)(nil)
