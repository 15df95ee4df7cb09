package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

type archiveRepository struct {
	q querier
}

// Снимок хранится как JSONB: архив неизменяем и читается только целиком,
// пополевая схема ему не нужна. Колонки reason/kind/archived_at дублируются
// для фильтрации листинга.
func (r *archiveRepository) Create(snap domain.ArchiveSnapshot) error {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	payload, err := json.Marshal(snap.Reservation)
	if err != nil {
		return fmt.Errorf("marshal archived reservation: %w", err)
	}

	_, err = r.q.db.ExecContext(ctx, `
		INSERT INTO archive_snapshots (
			id, reservation, kind, reason, archived_by, archived_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		snap.ID, payload, string(snap.Reservation.Kind), string(snap.Reason),
		snap.ArchivedBy, snap.ArchivedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUniqueCollision
		}
		return fmt.Errorf("insert archive snapshot: %w", err)
	}
	return nil
}

func (r *archiveRepository) Get(id string) (domain.ArchiveSnapshot, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	row := r.q.db.QueryRowContext(ctx, `
		SELECT id, reservation, reason, archived_by, archived_at
		FROM archive_snapshots
		WHERE id = $1
	`, id)

	snap, err := scanSnapshot(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ArchiveSnapshot{}, domain.ErrArchiveNotFound
		}
		return domain.ArchiveSnapshot{}, fmt.Errorf("select archive snapshot: %w", err)
	}
	return snap, nil
}

func (r *archiveRepository) List(filter domain.ArchiveFilter) ([]domain.ArchiveSnapshot, int, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	var (
		conds []string
		args  []any
	)
	addCond := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Reason != "" {
		addCond("reason = $%d", string(filter.Reason))
	}
	if filter.Kind != "" {
		addCond("kind = $%d", string(filter.Kind))
	}
	if !filter.From.IsZero() {
		addCond("archived_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		addCond("archived_at <= $%d", filter.To)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM archive_snapshots`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count archive snapshots: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitArg := len(args)
	args = append(args, filter.Offset)
	offsetArg := len(args)

	rows, err := r.q.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, reservation, reason, archived_by, archived_at
		FROM archive_snapshots
		%s
		ORDER BY archived_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, limitArg, offsetArg), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list archive snapshots: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ArchiveSnapshot, 0, limit)
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan archive snapshot: %w", err)
		}
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate archive snapshots: %w", err)
	}
	return result, total, nil
}

func (r *archiveRepository) Delete(id string) error {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	result, err := r.q.db.ExecContext(ctx, `DELETE FROM archive_snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete archive snapshot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrArchiveNotFound
	}
	return nil
}

func scanSnapshot(scan func(dest ...any) error) (domain.ArchiveSnapshot, error) {
	var (
		snap    domain.ArchiveSnapshot
		payload []byte
		reason  string
	)
	if err := scan(&snap.ID, &payload, &reason, &snap.ArchivedBy, &snap.ArchivedAt); err != nil {
		return domain.ArchiveSnapshot{}, err
	}
	if err := json.Unmarshal(payload, &snap.Reservation); err != nil {
		return domain.ArchiveSnapshot{}, fmt.Errorf("unmarshal archived reservation: %w", err)
	}
	snap.Reason = domain.ArchiveReason(reason)
	return snap, nil
}

var _ domain.ArchiveRepository = (*archiveRepository)(nil)
