package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

type slotRepository struct {
	q querier
}

func (r *slotRepository) Get(locationID string, tableNumber int) (domain.VIPSlot, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	var (
		slot   domain.VIPSlot
		status string
	)
	err := r.q.db.QueryRowContext(ctx, `
		SELECT location_id, table_number, status, capacity, price_minor, updated_at
		FROM vip_slots
		WHERE location_id = $1 AND table_number = $2
	`, locationID, tableNumber).Scan(
		&slot.LocationID, &slot.TableNumber, &status, &slot.Capacity, &slot.PriceMinor, &slot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.VIPSlot{}, domain.ErrSlotUnavailable
		}
		return domain.VIPSlot{}, fmt.Errorf("select vip slot: %w", err)
	}
	slot.Status = domain.SlotStatus(status)
	return slot, nil
}

func (r *slotRepository) ListByLocation(locationID string) ([]domain.VIPSlot, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	rows, err := r.q.db.QueryContext(ctx, `
		SELECT location_id, table_number, status, capacity, price_minor, updated_at
		FROM vip_slots
		WHERE location_id = $1
		ORDER BY table_number
	`, locationID)
	if err != nil {
		return nil, fmt.Errorf("list vip slots: %w", err)
	}
	defer rows.Close()

	result := make([]domain.VIPSlot, 0)
	for rows.Next() {
		var (
			slot   domain.VIPSlot
			status string
		)
		if err := rows.Scan(
			&slot.LocationID, &slot.TableNumber, &status, &slot.Capacity, &slot.PriceMinor, &slot.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan vip slot: %w", err)
		}
		slot.Status = domain.SlotStatus(status)
		result = append(result, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vip slots: %w", err)
	}
	return result, nil
}

func (r *slotRepository) SetStatus(locationID string, tableNumber int, status domain.SlotStatus) error {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	result, err := r.q.db.ExecContext(ctx, `
		UPDATE vip_slots
		SET status = $3,
		    updated_at = NOW()
		WHERE location_id = $1 AND table_number = $2
	`, locationID, tableNumber, string(status))
	if err != nil {
		return fmt.Errorf("set vip slot status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrSlotUnavailable
	}
	return nil
}

func (r *slotRepository) Locations() ([]domain.VIPLocation, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	rows, err := r.q.db.QueryContext(ctx, `
		SELECT id, name, table_unit_size, global_range_start, global_range_end
		FROM vip_locations
		ORDER BY global_range_start, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list vip locations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.VIPLocation, 0)
	for rows.Next() {
		var loc domain.VIPLocation
		if err := rows.Scan(
			&loc.ID, &loc.Name, &loc.TableUnitSize, &loc.GlobalRangeStart, &loc.GlobalRangeEnd,
		); err != nil {
			return nil, fmt.Errorf("scan vip location: %w", err)
		}
		result = append(result, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vip locations: %w", err)
	}
	return result, nil
}

func (r *slotRepository) Location(id string) (domain.VIPLocation, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	var loc domain.VIPLocation
	err := r.q.db.QueryRowContext(ctx, `
		SELECT id, name, table_unit_size, global_range_start, global_range_end
		FROM vip_locations
		WHERE id = $1
	`, id).Scan(
		&loc.ID, &loc.Name, &loc.TableUnitSize, &loc.GlobalRangeStart, &loc.GlobalRangeEnd,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.VIPLocation{}, domain.ErrLocationRequired
		}
		return domain.VIPLocation{}, fmt.Errorf("select vip location: %w", err)
	}
	return loc, nil
}

var _ domain.SlotRepository = (*slotRepository)(nil)
