package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// stockRepo — in-memory реализация StockRepository внутри транзакции.
type stockRepo struct {
	st *state
}

// Get возвращает конфигурацию категории или ErrConfigMissing.
func (r *stockRepo) Get(category domain.Category) (domain.StockConfig, error) {
	cfg, ok := r.st.stock[category]
	if !ok {
		return domain.StockConfig{}, domain.ErrConfigMissing
	}
	return cfg, nil
}

// List возвращает все конфигурации в стабильном порядке.
func (r *stockRepo) List() ([]domain.StockConfig, error) {
	result := make([]domain.StockConfig, 0, len(r.st.stock))
	for _, cfg := range r.st.stock {
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// AdjustSold меняет sold на delta с проверкой границ [0, limit].
func (r *stockRepo) AdjustSold(category domain.Category, delta int) error {
	cfg, ok := r.st.stock[category]
	if !ok {
		return domain.ErrConfigMissing
	}

	next := cfg.Sold + delta
	if next < 0 || next > cfg.Limit {
		return domain.ErrStockInvariantViolation
	}

	cfg.Sold = next
	cfg.UpdatedAt = time.Now().UTC()
	r.st.stock[category] = cfg
	return nil
}

var _ domain.StockRepository = (*stockRepo)(nil)
