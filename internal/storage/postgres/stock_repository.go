package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

type stockRepository struct {
	q querier
}

const stockColumns = `
	id, kind, gender, location_id, unit_price_minor, currency,
	stock_limit, sold, table_unit_size, updated_at`

func (r *stockRepository) Get(category domain.Category) (domain.StockConfig, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	row := r.q.db.QueryRowContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock_configs
		WHERE kind = $1 AND gender = $2 AND location_id = $3
	`, string(category.Kind), string(category.Gender), category.LocationID)

	cfg, err := scanStockConfig(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StockConfig{}, domain.ErrConfigMissing
		}
		return domain.StockConfig{}, fmt.Errorf("select stock config: %w", err)
	}
	return cfg, nil
}

func (r *stockRepository) List() ([]domain.StockConfig, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	rows, err := r.q.db.QueryContext(ctx, `
		SELECT `+stockColumns+`
		FROM stock_configs
		ORDER BY kind, gender, location_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list stock configs: %w", err)
	}
	defer rows.Close()

	result := make([]domain.StockConfig, 0)
	for rows.Next() {
		cfg, err := scanStockConfig(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan stock config: %w", err)
		}
		result = append(result, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock configs: %w", err)
	}
	return result, nil
}

// AdjustSold атомарно двигает счётчик. Условие в WHERE вместе с CHECK-схемой
// держит инвариант 0 <= sold <= limit без блокировок приложения.
func (r *stockRepository) AdjustSold(category domain.Category, delta int) error {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	result, err := r.q.db.ExecContext(ctx, `
		UPDATE stock_configs
		SET sold = sold + $4,
		    updated_at = NOW()
		WHERE kind = $1 AND gender = $2 AND location_id = $3
		  AND sold + $4 >= 0
		  AND sold + $4 <= stock_limit
	`, string(category.Kind), string(category.Gender), category.LocationID, delta)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrStockInvariantViolation
		}
		return fmt.Errorf("adjust sold counter: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.Get(category); getErr != nil {
			return getErr
		}
		return domain.ErrStockInvariantViolation
	}
	return nil
}

func scanStockConfig(scan func(dest ...any) error) (domain.StockConfig, error) {
	var (
		cfg    domain.StockConfig
		kind   string
		gender string
		locID  string
	)
	err := scan(
		&cfg.ID, &kind, &gender, &locID, &cfg.UnitPriceMinor, &cfg.Currency,
		&cfg.Limit, &cfg.Sold, &cfg.TableUnitSize, &cfg.UpdatedAt,
	)
	if err != nil {
		return domain.StockConfig{}, err
	}
	cfg.Category = domain.Category{
		Kind:       domain.Kind(kind),
		Gender:     domain.Gender(gender),
		LocationID: locID,
	}
	return cfg, nil
}

var _ domain.StockRepository = (*stockRepository)(nil)
