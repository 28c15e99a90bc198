// Package adjust реализует административные изменения ключа: сокращение срока,
// лимиты, блокировку и перенос в другой сквад.
package adjust

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/request"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Service — операции менеджера ключей, доступные администратору.
type Service interface {
	Reduce(ctx context.Context, keyID int64, days int, notify bool) (*models.Key, error)
	SetTrafficLimit(ctx context.Context, keyID, gb int64, notify bool) (*models.Key, error)
	SetDeviceLimit(ctx context.Context, keyID int64, devices int, notify bool) (*models.Key, error)
	Block(ctx context.Context, keyID int64, reason string, notify bool) (*models.Key, error)
	Unblock(ctx context.Context, keyID int64, notify bool) (*models.Key, error)
	Reassign(ctx context.Context, keyID int64, preferred []string) (*models.Key, error)
}

// ReduceRequest: тело POST /keys/{id}/reduce.
type ReduceRequest struct {
	Days   int  `json:"days" validate:"required,gt=0"`
	Notify bool `json:"notify"`
}

// TrafficRequest — тело POST /keys/{id}/traffic. 0 снимает лимит.
type TrafficRequest struct {
	GB     int64 `json:"gb" validate:"gte=0"`
	Notify bool  `json:"notify"`
}

// DevicesRequest: тело POST /keys/{id}/devices. 0 снимает лимит.
type DevicesRequest struct {
	Devices int  `json:"devices" validate:"gte=0"`
	Notify  bool `json:"notify"`
}

// BlockRequest — тело POST /keys/{id}/block.
type BlockRequest struct {
	Reason string `json:"reason"`
	Notify bool   `json:"notify"`
}

// UnblockRequest: тело POST /keys/{id}/unblock.
type UnblockRequest struct {
	Notify bool `json:"notify"`
}

// ReassignRequest — тело POST /keys/{id}/reassign. При пустом списке берётся соответствие для типа.
type ReassignRequest struct {
	SquadPreferences []string `json:"squad_preferences"`
}

// Handler обрабатывает административные изменения ключа.
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

// handle разбирает id и тело запроса в req и вызывает fn.
// Пустое тело допустимо: поля req остаются нулевыми.
func (h *Handler) handle(w http.ResponseWriter, r *http.Request, op string, req any,
	fn func(ctx context.Context, keyID int64) (*models.Key, error)) {
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := request.PathID(r, "id")
	if err != nil {
		response.BadRequest(w, r, log, err, "invalid key id")
		return
	}
	if err := request.Decode(r, req); err != nil && !errors.Is(err, request.ErrEmptyBody) {
		response.BadRequest(w, r, log, err, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, log, err)
		return
	}

	key, err := fn(r.Context(), id)
	if err != nil {
		response.Fail(w, r, log, err, "could not update key")
		return
	}

	log.Info("key updated", slog.Int64("key_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"key": key,
	}))
}

// Reduce godoc
// @Summary Сократить срок ключа
// @Tags Keys
// @Param id path int true "ID ключа"
// @Param request body ReduceRequest true "Дни"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /keys/{id}/reduce [post]
func (h *Handler) Reduce(w http.ResponseWriter, r *http.Request) {
	var req ReduceRequest
	h.handle(w, r, "handlers.keys.reduce", &req, func(ctx context.Context, id int64) (*models.Key, error) {
		return h.service.Reduce(ctx, id, req.Days, req.Notify)
	})
}

// Traffic godoc
// @Summary Задать лимит трафика
// @Tags Keys
// @Param id path int true "ID ключа"
// @Param request body TrafficRequest true "Лимит в ГБ"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /keys/{id}/traffic [post]
func (h *Handler) Traffic(w http.ResponseWriter, r *http.Request) {
	var req TrafficRequest
	h.handle(w, r, "handlers.keys.traffic", &req, func(ctx context.Context, id int64) (*models.Key, error) {
		return h.service.SetTrafficLimit(ctx, id, req.GB, req.Notify)
	})
}

// Devices godoc
// @Summary Задать лимит устройств
// @Tags Keys
// @Param id path int true "ID ключа"
// @Param request body DevicesRequest true "Лимит устройств"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /keys/{id}/devices [post]
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	var req DevicesRequest
	h.handle(w, r, "handlers.keys.devices", &req, func(ctx context.Context, id int64) (*models.Key, error) {
		return h.service.SetDeviceLimit(ctx, id, req.Devices, req.Notify)
	})
}

// Block godoc
// @Summary Заблокировать ключ
// @Tags Keys
// @Param id path int true "ID ключа"
// @Param request body BlockRequest false "Причина"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /keys/{id}/block [post]
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	h.handle(w, r, "handlers.keys.block", &req, func(ctx context.Context, id int64) (*models.Key, error) {
		return h.service.Block(ctx, id, req.Reason, req.Notify)
	})
}

// Unblock godoc
// @Summary Снять блокировку ключа
// @Tags Keys
// @Param id path int true "ID ключа"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /keys/{id}/unblock [post]
func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	var req UnblockRequest
	h.handle(w, r, "handlers.keys.unblock", &req, func(ctx context.Context, id int64) (*models.Key, error) {
		return h.service.Unblock(ctx, id, req.Notify)
	})
}

// Reassign godoc
// @Summary Перенести ключ в другой сквад
// @Tags Keys
// @Param id path int true "ID ключа"
// @Param request body ReassignRequest false "Предпочтительные сквады"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Нет свободного сквада"
// @Security BearerAuth
// @Router /keys/{id}/reassign [post]
func (h *Handler) Reassign(w http.ResponseWriter, r *http.Request) {
	var req ReassignRequest
	h.handle(w, r, "handlers.keys.reassign", &req, func(ctx context.Context, id int64) (*models.Key, error) {
		return h.service.Reassign(ctx, id, req.SquadPreferences)
	})
}
