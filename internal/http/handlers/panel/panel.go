// Package panel реализует ручную сверку с внешней VPN-панелью.
package panel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/panelsync"
)

// Service сверяет сквады и ключи с панелью.
type Service interface {
	SyncSquads(ctx context.Context) (models.SyncDiff, error)
	SyncKeys(ctx context.Context) (*panelsync.KeySyncResult, error)
}

// Handler обрабатывает POST /squads/sync и POST /keys/sync.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// Squads godoc
// @Summary Загрузить сквады из панели
// @Description Добавляет новые сквады, обновляет имена, помечает пропавшие как stale.
// @Tags Sync
// @Success 200 {object} response.Response
// @Failure 503 {object} response.ErrorResponse "Панель недоступна"
// @Security BearerAuth
// @Router /squads/sync [post]
func (h *Handler) Squads(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.panel.Squads"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	diff, err := h.service.SyncSquads(r.Context())
	if err != nil {
		response.Fail(w, r, log, err, "squad sync failed")
		return
	}
	log.Info("squads synced",
		slog.Int("added", len(diff.Added)),
		slog.Int("updated", len(diff.Updated)),
		slog.Int("stale", len(diff.RemovedFlagged)))
	render.JSON(w, r, response.StatusOKWithData(diff))
}

// Keys godoc
// @Summary Сверить ключи с панелью
// @Description Удаляет локальные ключи, которых нет в панели, и пересчитывает сквады.
// @Tags Sync
// @Success 200 {object} response.Response
// @Failure 503 {object} response.ErrorResponse "Панель недоступна"
// @Security BearerAuth
// @Router /keys/sync [post]
func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.panel.Keys"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	res, err := h.service.SyncKeys(r.Context())
	if err != nil {
		response.Fail(w, r, log, err, "key sync failed")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
