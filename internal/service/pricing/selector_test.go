package pricing

import (
	"testing"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

func TestPick_HighestMinQtyWins(t *testing.T) {
	rules := []domain.DiscountRule{
		{ID: "r1", Kind: domain.KindGeneral, MinQty: 4, Type: domain.DiscountPercent, Value: 10, Active: true},
		{ID: "r2", Kind: domain.KindGeneral, MinQty: 8, Type: domain.DiscountAmount, Value: 5000, Active: true},
	}

	picked := Pick(rules, domain.KindGeneral, 10)
	if picked == nil || picked.ID != "r2" {
		t.Fatalf("expected rule r2, got %+v", picked)
	}

	// Порядок объявления не должен влиять на выбор.
	reversed := []domain.DiscountRule{rules[1], rules[0]}
	picked = Pick(reversed, domain.KindGeneral, 10)
	if picked == nil || picked.ID != "r2" {
		t.Fatalf("expected rule r2 regardless of order, got %+v", picked)
	}
}

func TestPick_TieBreakPriorityThenValue(t *testing.T) {
	rules := []domain.DiscountRule{
		{ID: "low", Kind: domain.KindGeneral, MinQty: 4, Priority: 1, Value: 20, Active: true},
		{ID: "high", Kind: domain.KindGeneral, MinQty: 4, Priority: 5, Value: 10, Active: true},
	}
	if picked := Pick(rules, domain.KindGeneral, 6); picked == nil || picked.ID != "high" {
		t.Fatalf("expected higher priority rule, got %+v", picked)
	}

	rules = []domain.DiscountRule{
		{ID: "small", Kind: domain.KindGeneral, MinQty: 4, Priority: 1, Value: 10, Active: true},
		{ID: "big", Kind: domain.KindGeneral, MinQty: 4, Priority: 1, Value: 25, Active: true},
	}
	if picked := Pick(rules, domain.KindGeneral, 6); picked == nil || picked.ID != "big" {
		t.Fatalf("expected higher value rule, got %+v", picked)
	}
}

func TestPick_FiltersInactiveKindAndMinQty(t *testing.T) {
	rules := []domain.DiscountRule{
		{ID: "inactive", Kind: domain.KindGeneral, MinQty: 2, Value: 10, Active: false},
		{ID: "vip", Kind: domain.KindVIP, MinQty: 2, Value: 10, Active: true},
		{ID: "toobig", Kind: domain.KindGeneral, MinQty: 20, Value: 10, Active: true},
	}
	if picked := Pick(rules, domain.KindGeneral, 5); picked != nil {
		t.Fatalf("expected no rule, got %+v", picked)
	}
}

func TestApply_Table(t *testing.T) {
	percent := domain.DiscountRule{Type: domain.DiscountPercent, Value: 10}
	amount := domain.DiscountRule{Type: domain.DiscountAmount, Value: 5000}
	huge := domain.DiscountRule{Type: domain.DiscountAmount, Value: 1000000}

	cases := []struct {
		name      string
		unitMinor int64
		qty       int
		rule      *domain.DiscountRule
		want      int64
	}{
		{"no rule", 1000, 3, nil, 3000},
		{"percent floors", 333, 1, &percent, 300},     // 333 - floor(33.3)
		{"percent on even", 10000, 4, &percent, 36000}, // 40000 - 4000
		{"amount", 10000, 1, &amount, 5000},
		{"clamped at zero", 100, 1, &huge, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Apply(tc.unitMinor, tc.qty, tc.rule); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
