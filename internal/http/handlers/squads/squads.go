// Package squads реализует административное управление реестром сквадов.
package squads

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/request"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Registry — операции реестра сквадов.
type Registry interface {
	List(ctx context.Context) ([]models.Squad, error)
	UpdateSettings(ctx context.Context, uuid string, s models.SquadSettings) (*models.Squad, error)
	RemoveStale(ctx context.Context, uuid string) error
	RecountUsers(ctx context.Context) error
	GetMapping(ctx context.Context) (models.SquadMapping, error)
	SetMapping(ctx context.Context, mapping models.SquadMapping) error
}

// Handler обрабатывает маршруты /squads.
type Handler struct {
	log      *slog.Logger
	registry Registry
}

// New создает новый Handler.
func New(log *slog.Logger, registry Registry) *Handler {
	return &Handler{
		log:      log,
		registry: registry,
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List godoc
// @Summary Список сквадов
// @Tags Squads
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /squads [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.squads.List")

	squads, err := h.registry.List(r.Context())
	if err != nil {
		response.Fail(w, r, log, err, "could not list squads")
		return
	}
	if squads == nil {
		squads = []models.Squad{}
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"squads": squads,
	}))
}

// Update godoc
// @Summary Изменить настройки сквада
// @Description Меняет только переданные поля: name, type, max_users, priority, is_active.
// @Tags Squads
// @Param uuid path string true "UUID сквада"
// @Param request body models.SquadSettings true "Настройки"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /squads/{uuid} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.squads.Update")

	var req models.SquadSettings
	if err := request.Decode(r, &req); err != nil {
		response.BadRequest(w, r, log, err, "invalid request body")
		return
	}

	squad, err := h.registry.UpdateSettings(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		response.Fail(w, r, log, err, "could not update squad")
		return
	}
	log.Info("squad updated", slog.String("uuid", squad.UUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"squad": squad,
	}))
}

// Remove godoc
// @Summary Удалить устаревший сквад
// @Description Удаляются только сквады, пропавшие из панели, без ключей.
// @Tags Squads
// @Param uuid path string true "UUID сквада"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /squads/{uuid} [delete]
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.squads.Remove")

	uuid := chi.URLParam(r, "uuid")
	if err := h.registry.RemoveStale(r.Context(), uuid); err != nil {
		response.Fail(w, r, log, err, "could not remove squad")
		return
	}
	log.Info("squad removed", slog.String("uuid", uuid))
	w.WriteHeader(http.StatusNoContent)
}

// Recount godoc
// @Summary Пересчитать число пользователей в сквадах
// @Tags Squads
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /squads/recount [post]
func (h *Handler) Recount(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.squads.Recount")

	if err := h.registry.RecountUsers(r.Context()); err != nil {
		response.Fail(w, r, log, err, "could not recount squads")
		return
	}
	h.List(w, r)
}

// GetMapping godoc
// @Summary Соответствие типов подписки и сквадов
// @Tags Squads
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /squads/mapping [get]
func (h *Handler) GetMapping(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.squads.GetMapping")

	mapping, err := h.registry.GetMapping(r.Context())
	if err != nil {
		response.Fail(w, r, log, err, "could not read mapping")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"mapping": mapping,
	}))
}

// PutMapping godoc
// @Summary Заменить соответствие типов подписки и сквадов
// @Tags Squads
// @Param request body models.SquadMapping true "Тип -> список UUID"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /squads/mapping [put]
func (h *Handler) PutMapping(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.squads.PutMapping")

	var mapping models.SquadMapping
	if err := request.Decode(r, &mapping); err != nil {
		response.BadRequest(w, r, log, err, "invalid request body")
		return
	}
	if err := h.registry.SetMapping(r.Context(), mapping); err != nil {
		response.Fail(w, r, log, err, "could not update mapping")
		return
	}
	log.Info("squad mapping replaced")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"mapping": mapping,
	}))
}
