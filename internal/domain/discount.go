package domain

// DiscountType — способ вычисления скидки.
type DiscountType string

const (
	// DiscountPercent — процент от суммы, округляется вниз до целых денежных единиц.
	DiscountPercent DiscountType = "percent"
	// DiscountAmount — фиксированная сумма в минимальных денежных единицах.
	DiscountAmount DiscountType = "amount"
)

// DiscountRule — правило скидки, действующее от определённого количества.
type DiscountRule struct {
	ID       string
	Kind     Kind
	MinQty   int
	Type     DiscountType
	Value    int64 // процент либо сумма в minor units, по Type
	Priority int
	Active   bool
}
