package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// slotRepo — in-memory реализация SlotRepository внутри транзакции.
type slotRepo struct {
	st *state
}

// Get возвращает стол или ErrSlotUnavailable, если такого нет.
func (r *slotRepo) Get(locationID string, tableNumber int) (domain.VIPSlot, error) {
	slot, ok := r.st.slots[slotKey{locationID, tableNumber}]
	if !ok {
		return domain.VIPSlot{}, domain.ErrSlotUnavailable
	}
	return slot, nil
}

// ListByLocation возвращает столы локации по возрастанию номера.
func (r *slotRepo) ListByLocation(locationID string) ([]domain.VIPSlot, error) {
	result := make([]domain.VIPSlot, 0)
	for key, slot := range r.st.slots {
		if key.locationID == locationID {
			result = append(result, slot)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TableNumber < result[j].TableNumber })
	return result, nil
}

// SetStatus переводит стол в новый статус.
func (r *slotRepo) SetStatus(locationID string, tableNumber int, status domain.SlotStatus) error {
	key := slotKey{locationID, tableNumber}
	slot, ok := r.st.slots[key]
	if !ok {
		return domain.ErrSlotUnavailable
	}
	slot.Status = status
	slot.UpdatedAt = time.Now().UTC()
	r.st.slots[key] = slot
	return nil
}

// Locations возвращает все VIP-локации в стабильном порядке.
func (r *slotRepo) Locations() ([]domain.VIPLocation, error) {
	result := make([]domain.VIPLocation, 0, len(r.st.locations))
	for _, loc := range r.st.locations {
		result = append(result, loc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Location возвращает локацию по ID.
func (r *slotRepo) Location(id string) (domain.VIPLocation, error) {
	loc, ok := r.st.locations[id]
	if !ok {
		return domain.VIPLocation{}, domain.ErrLocationRequired
	}
	return loc, nil
}

var _ domain.SlotRepository = (*slotRepo)(nil)
