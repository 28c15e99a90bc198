// Package read реализует чтение ключей: одного по ID и всех ключей пользователя.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/request"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Service читает ключи с учётом прав Actor.
type Service interface {
	Get(ctx context.Context, keyID int64, actor models.Actor) (*models.KeyView, error)
	ListByUser(ctx context.Context, userID int64, actor models.Actor) ([]models.KeyView, error)
}

// Handler обрабатывает GET /keys/{id} и GET /users/{id}/keys.
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

// Get godoc
// @Summary Получить ключ
// @Description Возвращает ключ с эффективным статусом и числом оставшихся дней.
// @Tags Keys
// @Param id path int true "ID ключа"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /keys/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.keys.read.Get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actor, ok := request.Actor(w, r, log)
	if !ok {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		response.BadRequest(w, r, log, err, "invalid key id")
		return
	}

	view, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		response.Fail(w, r, log, err, "could not read key")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"key": view,
	}))
}

// List godoc
// @Summary Ключи пользователя
// @Tags Keys
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /users/{id}/keys [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.keys.read.List"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actor, ok := request.Actor(w, r, log)
	if !ok {
		return
	}
	userID, err := request.PathID(r, "id")
	if err != nil {
		response.BadRequest(w, r, log, err, "invalid user id")
		return
	}

	views, err := h.service.ListByUser(r.Context(), userID, actor)
	if err != nil {
		response.Fail(w, r, log, err, "could not list keys")
		return
	}
	if views == nil {
		views = []models.KeyView{}
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"keys": views,
	}))
}
