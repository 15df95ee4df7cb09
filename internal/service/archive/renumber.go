package archive

import "github.com/vladislavdragonenkov/boxoffice/internal/domain"

// LocalTableNumber приводит номер стола из снимка к локальной нумерации
// локации. Снимки могли сохранять номер как в локальной схеме, так и в
// сквозной по всем локациям: если номер попадает в сквозной отрезок целевой
// локации, он пересчитывается; если не попадает ни в один отрезок вообще,
// номер считается уже локальным. Номер из отрезка чужой локации — ошибка.
func LocalTableNumber(locations []domain.VIPLocation, locationID string, number int) (int, error) {
	if number <= 0 {
		return 0, domain.ErrTableNumberInvalid
	}

	var target *domain.VIPLocation
	for i := range locations {
		if locations[i].ID == locationID {
			target = &locations[i]
			break
		}
	}
	if target == nil {
		return 0, domain.ErrLocationRequired
	}

	if target.ContainsGlobal(number) {
		return number - target.GlobalRangeStart + 1, nil
	}

	for i := range locations {
		if locations[i].ID != locationID && locations[i].ContainsGlobal(number) {
			return 0, domain.ErrTableOutOfRange
		}
	}

	return number, nil
}
