// Package create реализует выдачу нового VPN-ключа.
//
// Пользователь покупает ключ себе, администратор указывает user_id явно.
// Цена передаётся в рублях строкой и списывается с баланса.
package create

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/request"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Request — тело POST /keys.
type Request struct {
	UserID           int64                   `json:"user_id" validate:"gte=0"`
	Days             int                     `json:"days" validate:"gte=0"`
	TrafficLimitGB   int64                   `json:"traffic_limit_gb" validate:"gte=0"`
	DevicesLimit     int                     `json:"devices_limit" validate:"gte=0"`
	Type             models.SubscriptionType `json:"type" validate:"omitempty,oneof=vpn whitelist trial"`
	IsTrial          bool                    `json:"is_trial"`
	IsForever        bool                    `json:"is_forever"`
	SquadPreferences []string                `json:"squad_preferences,omitempty"`
	Price            string                  `json:"price" example:"150.00"`
	Notify           bool                    `json:"notify"`
}

var errUserRequired = fmt.Errorf("%w: user_id is required", models.ErrInvalidArgument)

// Service выдаёт ключи.
type Service interface {
	Create(ctx context.Context, p models.CreateKeyParams, actor models.Actor) (*models.Key, error)
}

// Handler обрабатывает POST /keys.
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
// @Summary Выдать ключ
// @Tags Keys
// @Accept  json
// @Produce  json
// @Param request body Request true "Параметры ключа"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 402 {object} response.ErrorResponse "Недостаточно средств"
// @Failure 403 {object} response.ErrorResponse "Пользователь в чёрном списке"
// @Failure 409 {object} response.ErrorResponse "Нет свободного сквада или пробный период использован"
// @Failure 422 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse "Панель недоступна"
// @Security BearerAuth
// @Router /keys [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.keys.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actor, ok := request.Actor(w, r, log)
	if !ok {
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
		var err error
		if price, err = models.ParseRubles(req.Price); err != nil {
			response.Invalid(w, r, log, err)
			return
		}
	}

	userID := req.UserID
	if !actor.IsAdmin() {
		userID = actor.UserID
	}
	if userID == 0 {
		response.Invalid(w, r, log, errUserRequired)
		return
	}

	key, err := h.service.Create(r.Context(), models.CreateKeyParams{
		UserID:           userID,
		Days:             req.Days,
		TrafficLimitGB:   req.TrafficLimitGB,
		DevicesLimit:     req.DevicesLimit,
		Type:             req.Type,
		IsTrial:          req.IsTrial,
		IsForever:        req.IsForever,
		SquadPreferences: req.SquadPreferences,
		Price:            price,
		Notify:           req.Notify,
	}, actor)
	if err != nil {
		response.Fail(w, r, log, err, "could not create key")
		return
	}

	log.Info("key created", slog.Int64("key_id", key.ID), slog.Int64("user_id", userID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"key": key,
	}))
}
