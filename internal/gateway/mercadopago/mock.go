package mercadopago

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов.
type MockGateway struct {
	mu sync.Mutex

	Payments map[string]domain.GatewayPayment
	Orders   map[string]domain.GatewayOrder
	// ByPreference отдаётся из SearchByPreference по ключу preference id.
	ByPreference map[string][]domain.GatewayPayment

	PaymentErr error
	OrderErr   error
	SearchErr  error

	GetPaymentCalls int
	GetOrderCalls   int
	SearchCalls     int
}

// NewMockGateway возвращает пустую заглушку.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Payments:     make(map[string]domain.GatewayPayment),
		Orders:       make(map[string]domain.GatewayOrder),
		ByPreference: make(map[string][]domain.GatewayPayment),
	}
}

// SetPayment регистрирует платёж под его собственным ID. Безопасен
// для вызова из нескольких горутин.
func (m *MockGateway) SetPayment(p domain.GatewayPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payments[p.ID] = p
}

// GetPayment возвращает настроенный платёж или ErrPaymentNotFound.
func (m *MockGateway) GetPayment(ctx context.Context, paymentID string) (domain.GatewayPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetPaymentCalls++
	if m.PaymentErr != nil {
		return domain.GatewayPayment{}, m.PaymentErr
	}
	p, ok := m.Payments[paymentID]
	if !ok {
		return domain.GatewayPayment{}, domain.ErrPaymentNotFound
	}
	return p, nil
}

// GetOrder возвращает настроенный заказ или ErrPaymentNotFound.
func (m *MockGateway) GetOrder(ctx context.Context, orderID string) (domain.GatewayOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetOrderCalls++
	if m.OrderErr != nil {
		return domain.GatewayOrder{}, m.OrderErr
	}
	o, ok := m.Orders[orderID]
	if !ok {
		return domain.GatewayOrder{}, domain.ErrPaymentNotFound
	}
	return o, nil
}

// SearchByPreference возвращает настроенный список платежей.
func (m *MockGateway) SearchByPreference(ctx context.Context, preferenceID string) ([]domain.GatewayPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SearchCalls++
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.ByPreference[preferenceID], nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
