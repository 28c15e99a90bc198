// Package panelsync сверяет локальное состояние с внешней VPN-панелью:
// список сквадов и список пользователей панели. Запускается по требованию.
package panelsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/squad-orchestrator/internal/cache"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Panel — чтение состояния панели.
type Panel interface {
	ListSquads(ctx context.Context) ([]models.ExternalSquad, error)
	ListKeys(ctx context.Context) ([]models.PanelKey, error)
}

// Registry принимает сквады панели.
type Registry interface {
	UpsertFromExternal(ctx context.Context, external []models.ExternalSquad) (models.SyncDiff, error)
	ReleaseInTx(ctx context.Context, uuid string) error
	InvalidateList(ctx context.Context)
	RecountUsers(ctx context.Context) error
}

// Repository: локальные ключи.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListAllKeys(ctx context.Context) ([]models.Key, error)
	GetKeyForUpdate(ctx context.Context, id int64) (*models.Key, error)
	DeleteKey(ctx context.Context, id int64) error
	UpdateKeyTraffic(ctx context.Context, externalUUID string, trafficUsed int64) error
}

// Cache — кэш карточек ключей.
type Cache interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// KeySyncResult: итог сверки ключей.
type KeySyncResult struct {
	DeletedLocally []int64 `json:"deleted_locally"`
	ExternalTotal  int     `json:"external_total"`
	LocalTotal     int     `json:"local_total"`
}

// Service — сервис сверки.
type Service struct {
	panel    Panel
	registry Registry
	repo     Repository
	cache    Cache
	log      *slog.Logger
}

// New создаёт Service.
func New(panel Panel, registry Registry, repo Repository, c Cache, log *slog.Logger) *Service {
	return &Service{panel: panel, registry: registry, repo: repo, cache: c, log: log}
}

// SyncSquads загружает сквады панели в реестр. Если панель недоступна,
// реестр не меняется.
func (s *Service) SyncSquads(ctx context.Context) (models.SyncDiff, error) {
	const op = "panelsync.SyncSquads"
	external, err := s.panel.ListSquads(ctx)
	if err != nil {
		return models.SyncDiff{}, fmt.Errorf("%s: %w", op, err)
	}
	diff, err := s.registry.UpsertFromExternal(ctx, external)
	if err != nil {
		return models.SyncDiff{}, fmt.Errorf("%s: %w", op, err)
	}
	return diff, nil
}

// SyncKeys удаляет локальные ключи, которых больше нет в панели, освобождая
// их места в сквадах, обновляет расход трафика и пересчитывает счётчики сквадов.
// Если панель недоступна, локальное состояние не меняется.
//
// Локальные ключи читаются до снимка панели: ключ попадает в БД только после
// создания в панели, поэтому всё, что прочитано локально, снимок уже содержит.
// Ключ, созданный во время сверки, в локальную выборку не попадает и не удаляется.
func (s *Service) SyncKeys(ctx context.Context) (*KeySyncResult, error) {
	const op = "panelsync.SyncKeys"
	local, err := s.repo.ListAllKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	external, err := s.panel.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	present := make(map[string]models.PanelKey, len(external))
	for _, pk := range external {
		present[pk.UUID] = pk
	}

	res := &KeySyncResult{DeletedLocally: []int64{}, ExternalTotal: len(external), LocalTotal: len(local)}
	for _, k := range local {
		if pk, ok := present[k.ExternalUUID]; ok {
			if pk.UsedTrafficBytes != k.TrafficUsed {
				if err = s.repo.UpdateKeyTraffic(ctx, k.ExternalUUID, pk.UsedTrafficBytes); err != nil {
					s.log.Warn("usage update failed", slog.String("op", op), slog.Int64("key_id", k.ID), sl.Err(err))
				}
			}
			continue
		}
		deleted, err := s.deleteOrphan(ctx, k.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: key %d: %w", op, k.ID, err)
		}
		if deleted {
			res.DeletedLocally = append(res.DeletedLocally, k.ID)
		}
	}

	if err = s.registry.RecountUsers(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("keys reconciled",
		slog.String("op", op),
		slog.Int("external", res.ExternalTotal),
		slog.Int("local", res.LocalTotal),
		slog.Int("deleted", len(res.DeletedLocally)))
	return res, nil
}

// deleteOrphan удаляет ключ и освобождает его место. Ключ, который уже
// удалили параллельно, пропускается.
func (s *Service) deleteOrphan(ctx context.Context, keyID int64) (bool, error) {
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		k, err := s.repo.GetKeyForUpdate(ctx, keyID)
		if err != nil {
			return err
		}
		if err = s.repo.DeleteKey(ctx, keyID); err != nil {
			return err
		}
		return s.registry.ReleaseInTx(ctx, k.Squad())
	})
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.registry.InvalidateList(ctx)
	if err = s.cache.Invalidate(ctx, cache.KeyCacheKey(keyID)); err != nil {
		s.log.Warn("key cache invalidate failed", slog.Int64("key_id", keyID), sl.Err(err))
	}
	return true, nil
}
