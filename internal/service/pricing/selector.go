package pricing

import (
	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// Pick выбирает наиболее подходящее правило скидки для количества quantity.
// Рассматриваются только активные правила нужного вида с MinQty <= quantity.
// При нескольких кандидатах побеждает наибольший MinQty, затем наибольший
// Priority, затем наибольший Value. Порядок объявления правил роли не играет.
// Возвращает nil, если ни одно правило не подходит.
func Pick(rules []domain.DiscountRule, kind domain.Kind, quantity int) *domain.DiscountRule {
	var best *domain.DiscountRule

	for i := range rules {
		rule := &rules[i]
		if !rule.Active || rule.Kind != kind || rule.MinQty > quantity {
			continue
		}
		if best == nil || better(rule, best) {
			best = rule
		}
	}

	if best == nil {
		return nil
	}
	// Копия, чтобы вызывающий не мутировал входной срез.
	picked := *best
	return &picked
}

// better сравнивает кандидатов по порядку tie-break: MinQty, Priority, Value.
func better(a, b *domain.DiscountRule) bool {
	if a.MinQty != b.MinQty {
		return a.MinQty > b.MinQty
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Value > b.Value
}

// Apply вычисляет итог по правилу: subtotal = unitPriceMinor*quantity,
// процентная скидка — floor(subtotal*value/100), фиксированная — floor(value);
// итог не опускается ниже нуля. Нулевое правило означает нулевую скидку.
func Apply(unitPriceMinor int64, quantity int, rule *domain.DiscountRule) int64 {
	subtotal := unitPriceMinor * int64(quantity)
	if rule == nil {
		return subtotal
	}

	var discount int64
	switch rule.Type {
	case domain.DiscountPercent:
		// Целочисленное деление и есть floor для неотрицательных значений.
		discount = subtotal * rule.Value / 100
	case domain.DiscountAmount:
		discount = rule.Value
	}

	total := subtotal - discount
	if total < 0 {
		total = 0
	}
	return total
}
