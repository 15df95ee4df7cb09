package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// archiveRepo — in-memory реализация ArchiveRepository внутри транзакции.
type archiveRepo struct {
	st *state
}

// Create сохраняет снимок; повторный ID — коллизия.
func (r *archiveRepo) Create(snap domain.ArchiveSnapshot) error {
	if _, exists := r.st.archive[snap.ID]; exists {
		return domain.ErrUniqueCollision
	}
	r.st.archive[snap.ID] = snap
	return nil
}

// Get возвращает снимок или ErrArchiveNotFound.
func (r *archiveRepo) Get(id string) (domain.ArchiveSnapshot, error) {
	snap, ok := r.st.archive[id]
	if !ok {
		return domain.ArchiveSnapshot{}, domain.ErrArchiveNotFound
	}
	return snap, nil
}

// List возвращает страницу снимков по фильтру и общее число совпадений.
func (r *archiveRepo) List(filter domain.ArchiveFilter) ([]domain.ArchiveSnapshot, int, error) {
	matched := make([]domain.ArchiveSnapshot, 0, len(r.st.archive))
	for _, snap := range r.st.archive {
		if filter.Reason != "" && snap.Reason != filter.Reason {
			continue
		}
		if filter.Kind != "" && snap.Reservation.Kind != filter.Kind {
			continue
		}
		if !filter.From.IsZero() && snap.ArchivedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && snap.ArchivedAt.After(filter.To) {
			continue
		}
		matched = append(matched, snap)
	}

	// Свежие снимки первыми, как в админ-листинге.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ArchivedAt.Equal(matched[j].ArchivedAt) {
			return matched[i].ArchivedAt.After(matched[j].ArchivedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []domain.ArchiveSnapshot{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// Delete удаляет снимок.
func (r *archiveRepo) Delete(id string) error {
	if _, ok := r.st.archive[id]; !ok {
		return domain.ErrArchiveNotFound
	}
	delete(r.st.archive, id)
	return nil
}

var _ domain.ArchiveRepository = (*archiveRepo)(nil)

// eventRepo — in-memory реализация EventRepository.
type eventRepo struct {
	st *state
}

// Active возвращает активное мероприятие или ErrNoActiveEvent.
func (r *eventRepo) Active() (domain.Event, error) {
	if r.st.event == nil || !r.st.event.Active {
		return domain.Event{}, domain.ErrNoActiveEvent
	}
	return *r.st.event, nil
}

var _ domain.EventRepository = (*eventRepo)(nil)

// discountRepo — in-memory реализация DiscountRepository.
type discountRepo struct {
	st *state
}

// ListActive возвращает действующие правила нужного вида.
func (r *discountRepo) ListActive(kind domain.Kind) ([]domain.DiscountRule, error) {
	result := make([]domain.DiscountRule, 0, len(r.st.discounts))
	for _, rule := range r.st.discounts {
		if rule.Active && rule.Kind == kind {
			result = append(result, rule)
		}
	}
	return result, nil
}

var _ domain.DiscountRepository = (*discountRepo)(nil)
