// Package balancer выбирает сквад для нового ключа.
package balancer

import (
	"fmt"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Pick возвращает uuid наименее загруженного сквада типа t.
//
// Кандидаты: активные, не помеченные stale сквады нужного типа со свободным
// местом. Непустой preferred сужает выбор до перечисленных uuid.
// Порядок: меньше CurrentUsers, затем меньше Priority, затем uuid по алфавиту.
// Функция чистая: при одинаковом входе результат одинаков.
func Pick(squads []models.Squad, t models.SubscriptionType, preferred []string) (string, error) {
	const op = "balancer.Pick"

	var allowed map[string]struct{}
	if len(preferred) > 0 {
		allowed = make(map[string]struct{}, len(preferred))
		for _, uuid := range preferred {
			allowed[uuid] = struct{}{}
		}
	}

	var best *models.Squad
	for i := range squads {
		sq := &squads[i]
		if !sq.IsActive || sq.Stale || sq.Type != t || !sq.HasCapacity() {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[sq.UUID]; !ok {
				continue
			}
		}
		if best == nil || less(sq, best) {
			best = sq
		}
	}
	if best == nil {
		return "", fmt.Errorf("%s: type %s: %w", op, t, models.ErrNoEligibleSquad)
	}
	return best.UUID, nil
}

func less(a, b *models.Squad) bool {
	if a.CurrentUsers != b.CurrentUsers {
		return a.CurrentUsers < b.CurrentUsers
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.UUID < b.UUID
}
