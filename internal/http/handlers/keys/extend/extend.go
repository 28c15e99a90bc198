// Package extend реализует продление ключа с оплатой с баланса.
package extend

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/request"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Request — тело POST /keys/{id}/extend. Price — в рублях, пустая строка означает 0.
type Request struct {
	Days   int    `json:"days" validate:"required,gt=0"`
	Price  string `json:"price" example:"100"`
	Notify bool   `json:"notify"`
}

// Service продлевает ключи.
type Service interface {
	Extend(ctx context.Context, keyID int64, days int, price int64, notify bool, actor models.Actor) (*models.Key, error)
}

// Handler обрабатывает POST /keys/{id}/extend.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Продлить ключ
// @Description Списывает цену с баланса и продлевает ключ на days дней от max(сейчас, срок ключа).
// @Tags Keys
// @Accept  json
// @Produce  json
// @Param id path int true "ID ключа"
// @Param request body Request true "Параметры продления"
// @Success 200 {object} response.Response
// @Failure 402 {object} response.ErrorResponse "Недостаточно средств"
// @Failure 404 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /keys/{id}/extend [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.keys.extend"
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

	var req Request
	if err := request.Decode(r, &req); err != nil {
		response.BadRequest(w, r, log, err, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, log, err)
		return
	}
	var price int64
	if req.Price != "" {
		if price, err = models.ParseRubles(req.Price); err != nil {
			response.Invalid(w, r, log, err)
			return
		}
	}

	key, err := h.service.Extend(r.Context(), id, req.Days, price, req.Notify, actor)
	if err != nil {
		response.Fail(w, r, log, err, "could not extend key")
		return
	}

	log.Info("key extended", slog.Int64("key_id", id), slog.Int("days", req.Days))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"key": key,
	}))
}
