// Package massaction реализует запуск массовых действий над пользователями.
package massaction

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/request"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Executor выполняет массовое действие.
type Executor interface {
	Execute(ctx context.Context, action models.MassAction, filter models.TargetFilter) (*models.MassActionResult, error)
}

// Request — массовое действие. Params разбираются по тегу Action.
// Денежные суммы в params указываются в копейках.
type Request struct {
	Action models.MassActionType `json:"action" validate:"required"`
	Params json.RawMessage       `json:"params,omitempty" swaggertype:"object"`
	Filter models.TargetFilter   `json:"filter"`
}

// Handler обрабатывает POST /mass-actions.
type Handler struct {
	log      *slog.Logger
	executor Executor
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, executor Executor) *Handler {
	return &Handler{
		log:      log,
		executor: executor,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выполнить массовое действие
// @Description Применяет действие к каждому пользователю из фильтра.
// @Description Ошибка одного пользователя не останавливает остальных.
// @Tags MassActions
// @Accept json
// @Produce json
// @Param request body Request true "Действие, параметры и фильтр"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Неизвестное действие или параметры"
// @Security BearerAuth
// @Router /mass-actions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.massaction.ServeHTTP"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := request.Decode(r, &req); err != nil {
		response.BadRequest(w, r, log, err, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, log, err)
		return
	}
	action, err := models.DecodeMassAction(req.Action, req.Params)
	if err != nil {
		response.Invalid(w, r, log, err)
		return
	}

	res, err := h.executor.Execute(r.Context(), action, req.Filter)
	if err != nil {
		response.Fail(w, r, log, err, "mass action failed")
		return
	}
	if res.Interrupted {
		log.Warn("mass action interrupted",
			slog.String("action", string(res.Action)),
			slog.Int("succeeded", len(res.Succeeded)))
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"result": res}))
}
