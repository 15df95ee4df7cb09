package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

type eventRepository struct {
	q querier
}

func (r *eventRepository) Active() (domain.Event, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	var (
		ev       domain.Event
		startsAt sql.NullTime
	)
	err := r.q.db.QueryRowContext(ctx, `
		SELECT id, name, starts_at, active, total_capacity
		FROM events
		WHERE active
		ORDER BY starts_at DESC NULLS LAST, id
		LIMIT 1
	`).Scan(&ev.ID, &ev.Name, &startsAt, &ev.Active, &ev.TotalCapacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, domain.ErrNoActiveEvent
		}
		return domain.Event{}, fmt.Errorf("select active event: %w", err)
	}
	if startsAt.Valid {
		ev.StartsAt = startsAt.Time.UTC()
	}
	return ev, nil
}

var _ domain.EventRepository = (*eventRepository)(nil)

type discountRepository struct {
	q querier
}

func (r *discountRepository) ListActive(kind domain.Kind) ([]domain.DiscountRule, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	rows, err := r.q.db.QueryContext(ctx, `
		SELECT id, kind, min_qty, discount_type, value, priority, active
		FROM discount_rules
		WHERE active AND kind = $1
		ORDER BY min_qty, priority DESC
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list discount rules: %w", err)
	}
	defer rows.Close()

	result := make([]domain.DiscountRule, 0)
	for rows.Next() {
		var (
			rule     domain.DiscountRule
			ruleKind string
			ruleType string
		)
		if err := rows.Scan(
			&rule.ID, &ruleKind, &rule.MinQty, &ruleType, &rule.Value, &rule.Priority, &rule.Active,
		); err != nil {
			return nil, fmt.Errorf("scan discount rule: %w", err)
		}
		rule.Kind = domain.Kind(ruleKind)
		rule.Type = domain.DiscountType(ruleType)
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discount rules: %w", err)
	}
	return result, nil
}

var _ domain.DiscountRepository = (*discountRepository)(nil)
