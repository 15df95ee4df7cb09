package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

const opTimeout = 5 * time.Second

// runner покрывает общий интерфейс *sql.DB и *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querier привязывает runner к контексту вызова. Вне транзакции
// (ctx == nil) каждая операция получает собственный таймаут.
type querier struct {
	ctx context.Context
	db  runner
}

// opCtx возвращает контекст операции; cancel вызывается в конце метода
// репозитория, когда все строки уже прочитаны.
func (q querier) opCtx() (context.Context, context.CancelFunc) {
	if q.ctx != nil {
		return q.ctx, func() {}
	}
	return context.WithTimeout(context.Background(), opTimeout)
}

// dbTx отдаёт репозитории, привязанные к открытой транзакции.
type dbTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *dbTx) q() querier { return querier{ctx: t.ctx, db: t.tx} }

func (t *dbTx) Reservations() domain.ReservationRepository { return &reservationRepository{q: t.q()} }
func (t *dbTx) Stock() domain.StockRepository              { return &stockRepository{q: t.q()} }
func (t *dbTx) Slots() domain.SlotRepository               { return &slotRepository{q: t.q()} }
func (t *dbTx) Archive() domain.ArchiveRepository          { return &archiveRepository{q: t.q()} }
func (t *dbTx) Events() domain.EventRepository             { return &eventRepository{q: t.q()} }
func (t *dbTx) Discounts() domain.DiscountRepository       { return &discountRepository{q: t.q()} }
func (t *dbTx) Outbox() domain.OutboxRepository            { return &outboxRepository{q: t.q()} }

var _ domain.Tx = (*dbTx)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	return false
}
