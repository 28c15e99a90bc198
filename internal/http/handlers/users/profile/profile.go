// Package profile отдает карточку пользователя.
package profile

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

// Service читает пользователя с проверкой доступа.
type Service interface {
	Get(ctx context.Context, userID int64, actor models.Actor) (*models.User, error)
}

// Handler обрабатывает GET /users/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Карточка пользователя
// @Description Баланс, статус и партнерские данные. Пользователь видит только себя.
// @Tags Users
// @Produce json
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.profile"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := request.PathID(r, "id")
	if err != nil {
		response.BadRequest(w, r, log, err, "invalid user id")
		return
	}
	actor, ok := request.Actor(w, r, log)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), userID, actor)
	if err != nil {
		response.Fail(w, r, log, err, "user not found")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":             user,
		"effective_status": user.EffectiveStatus(),
	}))
}
