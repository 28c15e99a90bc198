// Package registry хранит реестр сквадов: сверка с панелью, счётчики
// назначений, локальные настройки и соответствие типов подписки сквадам.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/squad-orchestrator/internal/cache"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/metrics"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/balancer"
)

// maxAssignAttempts — сколько раз Assign перечитывает сквады, если выбранный
// сквад успели заполнить параллельные назначения.
const maxAssignAttempts = 5

// Repository описывает хранилище сквадов.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListSquads(ctx context.Context) ([]models.Squad, error)
	GetSquad(ctx context.Context, uuid string) (*models.Squad, error)
	InsertSquad(ctx context.Context, sq models.Squad) error
	RefreshSquadFromExternal(ctx context.Context, uuid, name string) error
	MarkSquadStale(ctx context.Context, uuid string) error
	UpdateSquadSettings(ctx context.Context, sq models.Squad) error
	IncrementSquadUsers(ctx context.Context, uuid string) (bool, error)
	DecrementSquadUsers(ctx context.Context, uuid string) error
	RecountSquadUsers(ctx context.Context) error
	DeleteStaleSquad(ctx context.Context, uuid string) error
	GetSquadMapping(ctx context.Context) (models.SquadMapping, error)
	ReplaceSquadMapping(ctx context.Context, mapping models.SquadMapping) error
}

// Cache описывает кэш списка сквадов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Registry — реестр сквадов.
type Registry struct {
	repo    Repository
	cache   Cache
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New создаёт Registry.
func New(repo Repository, cache Cache, m *metrics.Metrics, log *slog.Logger) *Registry {
	return &Registry{repo: repo, cache: cache, metrics: m, log: log}
}

// List возвращает все сквады. Сначала смотрит в кэш.
func (r *Registry) List(ctx context.Context) ([]models.Squad, error) {
	const op = "registry.List"
	var squads []models.Squad
	found, err := r.cache.Get(ctx, cache.SquadListCacheKey, &squads)
	if err != nil {
		r.log.Warn("squad cache read failed", slog.String("op", op), sl.Err(err))
	}
	if found {
		return squads, nil
	}

	squads, err = r.repo.ListSquads(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = r.cache.Set(ctx, cache.SquadListCacheKey, squads, 0); err != nil {
		r.log.Warn("squad cache write failed", slog.String("op", op), sl.Err(err))
	}
	return squads, nil
}

func (r *Registry) invalidate(ctx context.Context, op string) {
	if err := r.cache.Invalidate(ctx, cache.SquadListCacheKey); err != nil {
		r.log.Warn("squad cache invalidate failed", slog.String("op", op), sl.Err(err))
	}
}

// InvalidateList сбрасывает кэш списка сквадов. Вызывается после коммита
// транзакции, в которой менялись счётчики через ReleaseInTx.
func (r *Registry) InvalidateList(ctx context.Context) {
	r.invalidate(ctx, "registry.InvalidateList")
}

// UpsertFromExternal сверяет реестр со списком панели по uuid.
// Новые сквады добавляются с настройками по умолчанию, у известных обновляется
// только имя, отсутствующие в списке помечаются stale и не удаляются.
func (r *Registry) UpsertFromExternal(ctx context.Context, external []models.ExternalSquad) (models.SyncDiff, error) {
	const op = "registry.UpsertFromExternal"
	diff := models.SyncDiff{Added: []string{}, Updated: []string{}, RemovedFlagged: []string{}}

	err := r.repo.InTx(ctx, func(ctx context.Context) error {
		existing, err := r.repo.ListSquads(ctx)
		if err != nil {
			return err
		}
		known := make(map[string]models.Squad, len(existing))
		for _, sq := range existing {
			known[sq.UUID] = sq
		}

		seen := make(map[string]struct{}, len(external))
		for _, ext := range external {
			if ext.UUID == "" {
				continue
			}
			if _, dup := seen[ext.UUID]; dup {
				continue
			}
			seen[ext.UUID] = struct{}{}

			sq, ok := known[ext.UUID]
			if !ok {
				if err = r.repo.InsertSquad(ctx, models.Squad{
					UUID:     ext.UUID,
					Name:     ext.Name,
					Type:     models.SubscriptionVPN,
					IsActive: true,
				}); err != nil {
					return err
				}
				diff.Added = append(diff.Added, ext.UUID)
				continue
			}
			if sq.Name != ext.Name || sq.Stale {
				if err = r.repo.RefreshSquadFromExternal(ctx, ext.UUID, ext.Name); err != nil {
					return err
				}
				diff.Updated = append(diff.Updated, ext.UUID)
			}
		}

		for _, sq := range existing {
			if _, ok := seen[sq.UUID]; ok || sq.Stale {
				continue
			}
			if err = r.repo.MarkSquadStale(ctx, sq.UUID); err != nil {
				return err
			}
			diff.RemovedFlagged = append(diff.RemovedFlagged, sq.UUID)
		}
		return nil
	})
	if err != nil {
		return models.SyncDiff{}, fmt.Errorf("%s: %w", op, err)
	}
	r.invalidate(ctx, op)

	r.log.Info("squads reconciled",
		slog.String("op", op),
		slog.Int("added", len(diff.Added)),
		slog.Int("updated", len(diff.Updated)),
		slog.Int("stale", len(diff.RemovedFlagged)))
	return diff, nil
}

// RecordAssignment занимает место в скваде. Возвращает ErrSquadFull,
// если сквад заполнен, и ErrNotFound для неизвестного uuid.
func (r *Registry) RecordAssignment(ctx context.Context, uuid string) error {
	const op = "registry.RecordAssignment"
	ok, err := r.repo.IncrementSquadUsers(ctx, uuid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		if _, err = r.repo.GetSquad(ctx, uuid); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %s: %w", op, uuid, models.ErrSquadFull)
	}
	r.invalidate(ctx, op)
	return nil
}

// RecordRelease освобождает место в скваде. Счётчик не опускается ниже нуля.
func (r *Registry) RecordRelease(ctx context.Context, uuid string) error {
	const op = "registry.RecordRelease"
	if uuid == "" {
		return nil
	}
	if err := r.repo.DecrementSquadUsers(ctx, uuid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.invalidate(ctx, op)
	return nil
}

// ReleaseInTx освобождает место в скваде внутри транзакции вызывающего.
// Кэш списка не трогает: до коммита параллельный List закэшировал бы
// старые счётчики. После коммита вызывающий сбрасывает кэш через InvalidateList.
func (r *Registry) ReleaseInTx(ctx context.Context, uuid string) error {
	const op = "registry.ReleaseInTx"
	if uuid == "" {
		return nil
	}
	if err := r.repo.DecrementSquadUsers(ctx, uuid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Assign выбирает сквад балансировщиком и занимает в нём место.
// Если выбранный сквад заполнили параллельно, выбор повторяется
// по свежему состоянию.
func (r *Registry) Assign(ctx context.Context, t models.SubscriptionType, preferred []string) (string, error) {
	const op = "registry.Assign"
	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		squads, err := r.repo.ListSquads(ctx)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		uuid, err := balancer.Pick(squads, t, preferred)
		if err != nil {
			r.metrics.NoEligibleSquad.WithLabelValues(string(t)).Inc()
			return "", fmt.Errorf("%s: %w", op, err)
		}
		err = r.RecordAssignment(ctx, uuid)
		if errors.Is(err, models.ErrSquadFull) {
			r.log.Debug("squad filled concurrently, retrying",
				slog.String("op", op), slog.String("squad", uuid), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		r.metrics.SquadAssignments.WithLabelValues(uuid).Inc()
		return uuid, nil
	}
	r.metrics.NoEligibleSquad.WithLabelValues(string(t)).Inc()
	return "", fmt.Errorf("%s: %w", op, models.ErrNoEligibleSquad)
}

// UpdateSettings меняет локальные настройки сквада.
func (r *Registry) UpdateSettings(ctx context.Context, uuid string, s models.SquadSettings) (*models.Squad, error) {
	const op = "registry.UpdateSettings"
	if s.MaxUsers != nil && *s.MaxUsers < 0 {
		return nil, fmt.Errorf("%s: max_users must be >= 0: %w", op, models.ErrInvalidArgument)
	}
	if s.Priority != nil && *s.Priority < 0 {
		return nil, fmt.Errorf("%s: priority must be >= 0: %w", op, models.ErrInvalidArgument)
	}
	if s.Type != nil && !s.Type.Valid() {
		return nil, fmt.Errorf("%s: unknown type %q: %w", op, *s.Type, models.ErrInvalidArgument)
	}

	var updated *models.Squad
	err := r.repo.InTx(ctx, func(ctx context.Context) error {
		sq, err := r.repo.GetSquad(ctx, uuid)
		if err != nil {
			return err
		}
		if s.Name != nil {
			sq.Name = *s.Name
		}
		if s.Type != nil {
			sq.Type = *s.Type
		}
		if s.MaxUsers != nil {
			sq.MaxUsers = *s.MaxUsers
		}
		if s.Priority != nil {
			sq.Priority = *s.Priority
		}
		if s.IsActive != nil {
			sq.IsActive = *s.IsActive
		}
		if err = r.repo.UpdateSquadSettings(ctx, *sq); err != nil {
			return err
		}
		updated = sq
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.invalidate(ctx, op)
	return updated, nil
}

// RemoveStale удаляет сквад, помеченный stale. Вызывается по подтверждению оператора.
func (r *Registry) RemoveStale(ctx context.Context, uuid string) error {
	const op = "registry.RemoveStale"
	if err := r.repo.DeleteStaleSquad(ctx, uuid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.invalidate(ctx, op)
	r.log.Info("stale squad removed", slog.String("op", op), slog.String("squad", uuid))
	return nil
}

// GetMapping возвращает соответствие типов подписки сквадам.
func (r *Registry) GetMapping(ctx context.Context) (models.SquadMapping, error) {
	const op = "registry.GetMapping"
	m, err := r.repo.GetSquadMapping(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// SetMapping заменяет списки сквадов для переданных типов.
// Неизвестный тип или uuid отклоняются целиком.
func (r *Registry) SetMapping(ctx context.Context, mapping models.SquadMapping) error {
	const op = "registry.SetMapping"
	err := r.repo.InTx(ctx, func(ctx context.Context) error {
		squads, err := r.repo.ListSquads(ctx)
		if err != nil {
			return err
		}
		known := make(map[string]struct{}, len(squads))
		for _, sq := range squads {
			known[sq.UUID] = struct{}{}
		}
		for t, uuids := range mapping {
			if !t.Valid() {
				return fmt.Errorf("unknown type %q: %w", t, models.ErrInvalidArgument)
			}
			for _, uuid := range uuids {
				if _, ok := known[uuid]; !ok {
					return fmt.Errorf("unknown squad %q: %w", uuid, models.ErrInvalidArgument)
				}
			}
		}
		return r.repo.ReplaceSquadMapping(ctx, mapping)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Preferred возвращает сквады, разрешённые для типа t. Пустой список
// означает любой активный сквад этого типа.
func (r *Registry) Preferred(ctx context.Context, t models.SubscriptionType) ([]string, error) {
	const op = "registry.Preferred"
	m, err := r.repo.GetSquadMapping(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m[t], nil
}

// RecountUsers пересчитывает current_users по фактическим ключам.
func (r *Registry) RecountUsers(ctx context.Context) error {
	const op = "registry.RecountUsers"
	if err := r.repo.RecountSquadUsers(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.invalidate(ctx, op)
	return nil
}
