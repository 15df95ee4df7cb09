package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// reservationRepo — in-memory реализация ReservationRepository внутри транзакции.
type reservationRepo struct {
	st *state
}

// Create сохраняет новую резервацию, если ID и QR ещё не заняты.
func (r *reservationRepo) Create(res domain.Reservation) error {
	if _, exists := r.st.reservations[res.ID]; exists {
		return domain.ErrUniqueCollision
	}
	if res.QRCode != "" {
		for _, other := range r.st.reservations {
			if other.QRCode == res.QRCode {
				return domain.ErrUniqueCollision
			}
		}
	}
	r.st.reservations[res.ID] = res
	return nil
}

// Get возвращает резервацию или ErrReservationNotFound.
func (r *reservationRepo) Get(id string) (domain.Reservation, error) {
	res, ok := r.st.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return res, nil
}

// Update перезаписывает существующую резервацию.
func (r *reservationRepo) Update(res domain.Reservation) error {
	if _, ok := r.st.reservations[res.ID]; !ok {
		return domain.ErrReservationNotFound
	}
	res.UpdatedAt = time.Now().UTC()
	r.st.reservations[res.ID] = res
	return nil
}

// Delete удаляет живую строку.
func (r *reservationRepo) Delete(id string) error {
	if _, ok := r.st.reservations[id]; !ok {
		return domain.ErrReservationNotFound
	}
	delete(r.st.reservations, id)
	return nil
}

// ListStale возвращает до limit нетерминальных резерваций, просроченных
// по ExpiresAt либо (при его отсутствии) по возрасту PurchaseDate.
func (r *reservationRepo) ListStale(now, cutoff time.Time, limit int) ([]domain.Reservation, error) {
	result := make([]domain.Reservation, 0, limit)
	for _, res := range r.st.reservations {
		if !res.PaymentStatus.IsStale() {
			continue
		}
		expired := false
		if !res.ExpiresAt.IsZero() {
			expired = res.ExpiresAt.Before(now)
		} else if !cutoff.IsZero() {
			expired = res.PurchaseDate.Before(cutoff)
		}
		if expired {
			result = append(result, res)
		}
	}

	// Стабильный порядок: самые старые первыми.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PurchaseDate.Equal(result[j].PurchaseDate) {
			return result[i].PurchaseDate.Before(result[j].PurchaseDate)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// CountApprovedPersons суммирует людей по всем approved-резервациям,
// конвертируя VIP-столы по вместимости их локаций.
func (r *reservationRepo) CountApprovedPersons() (int, error) {
	total := 0
	for _, res := range r.st.reservations {
		if res.PaymentStatus != domain.PaymentStatusApproved {
			continue
		}
		unit := 0
		if res.Kind == domain.KindVIP {
			if loc, ok := r.st.locations[res.VIPLocationID]; ok {
				unit = loc.TableUnitSize
			}
		}
		total += res.Persons(unit)
	}
	return total, nil
}

// ExistsValidationCode проверяет занятость кода валидации.
func (r *reservationRepo) ExistsValidationCode(code string) (bool, error) {
	for _, res := range r.st.reservations {
		if res.ValidationCode != "" && res.ValidationCode == code {
			return true, nil
		}
	}
	return false, nil
}

// ActiveOnTable сообщает, держит ли стол активная резервация.
func (r *reservationRepo) ActiveOnTable(locationID string, tableNumber int) (bool, error) {
	for _, res := range r.st.reservations {
		if res.Kind != domain.KindVIP || res.VIPLocationID != locationID || res.TableNumber != tableNumber {
			continue
		}
		if res.PaymentStatus == domain.PaymentStatusApproved || res.PaymentStatus == domain.PaymentStatusInProcess {
			return true, nil
		}
	}
	return false, nil
}

var _ domain.ReservationRepository = (*reservationRepo)(nil)
