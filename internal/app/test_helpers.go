package app

import (
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// newTestReservation создаёт тестовую резервацию для использования в тестах.
func newTestReservation() domain.Reservation {
	now := time.Now().UTC()
	return domain.Reservation{
		ID:              "test-res-1",
		Kind:            domain.KindGeneral,
		Gender:          domain.GenderMale,
		Quantity:        2,
		TotalPriceMinor: 20000,
		Currency:        "ARS",
		Customer: domain.Customer{
			FullName: "Test Customer",
			DNI:      "12345678",
		},
		PaymentStatus: domain.PaymentStatusPending,
		QRCode:        "test-qr-1",
		PurchaseDate:  now,
		ExpiresAt:     now.Add(30 * time.Minute),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
