// Package promo реализует HTTP-ручки промокодов.
package promo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/request"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Service — операции с промокодами.
type Service interface {
	Create(ctx context.Context, p models.Promo) (*models.Promo, error)
	Apply(ctx context.Context, userID int64, code string, actor models.Actor) (*models.PromoResult, error)
}

// CreateRequest описывает новый промокод.
// Для balance задается Amount в рублях, для subscription число дней Days.
type CreateRequest struct {
	Code      string     `json:"code" validate:"required"`
	Type      string     `json:"type" validate:"required,oneof=balance subscription"`
	Amount    string     `json:"amount,omitempty"`
	Days      int        `json:"days,omitempty" validate:"gte=0"`
	UsesLimit int        `json:"uses_limit" validate:"gte=0"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ApplyRequest — применение кода. UserID обязателен только администратору.
type ApplyRequest struct {
	Code   string `json:"code" validate:"required"`
	UserID int64  `json:"user_id,omitempty" validate:"gte=0"`
}

// Handler обслуживает /promos.
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

func (req CreateRequest) toPromo() (models.Promo, error) {
	p := models.Promo{
		Code:      req.Code,
		Type:      models.PromoType(req.Type),
		UsesLimit: req.UsesLimit,
		ExpiresAt: req.ExpiresAt,
	}
	switch p.Type {
	case models.PromoBalance:
		if req.Amount == "" {
			return p, fmt.Errorf("%w: amount is required for balance promo", models.ErrInvalidArgument)
		}
		v, err := models.ParseRubles(req.Amount)
		if err != nil {
			return p, err
		}
		p.Value = v
	case models.PromoSubscription:
		p.Value = int64(req.Days)
	}
	if p.Value <= 0 {
		return p, fmt.Errorf("%w: promo value must be positive", models.ErrInvalidArgument)
	}
	return p, nil
}

// Create godoc
// @Summary Создать промокод
// @Tags Promo
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Промокод"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Некорректные параметры"
// @Security BearerAuth
// @Router /promos [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.Create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req CreateRequest
	if err := request.Decode(r, &req); err != nil {
		response.BadRequest(w, r, log, err, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, log, err)
		return
	}
	p, err := req.toPromo()
	if err != nil {
		response.Invalid(w, r, log, err)
		return
	}

	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		response.Fail(w, r, log, err, "failed to create promo")
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"promo": created}))
}

// Apply godoc
// @Summary Применить промокод
// @Description Пользователь применяет код к себе, администратор к указанному user_id.
// @Tags Promo
// @Accept json
// @Produce json
// @Param request body ApplyRequest true "Код"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Код уже использован"
// @Failure 410 {object} response.ErrorResponse "Код истек или исчерпан"
// @Security BearerAuth
// @Router /promos/apply [post]
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.Apply"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actor, ok := request.Actor(w, r, log)
	if !ok {
		return
	}
	var req ApplyRequest
	if err := request.Decode(r, &req); err != nil {
		response.BadRequest(w, r, log, err, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, log, err)
		return
	}

	userID := actor.UserID
	if actor.IsAdmin() {
		if req.UserID == 0 {
			response.Invalid(w, r, log, fmt.Errorf("user_id is required"))
			return
		}
		userID = req.UserID
	}

	res, err := h.service.Apply(r.Context(), userID, req.Code, actor)
	if err != nil {
		response.Fail(w, r, log, err, "failed to apply promo")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"result": res}))
}
