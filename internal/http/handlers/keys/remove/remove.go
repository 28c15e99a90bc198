// Package remove реализует удаление ключа.
//
// Локальное удаление фиксируется всегда; если панель не удалила пользователя,
// ответ остаётся успешным и содержит external_error.
package remove

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

// Service удаляет ключи.
type Service interface {
	Delete(ctx context.Context, keyID int64, notify bool, actor models.Actor) (*models.DeleteKeyResult, error)
}

// Handler обрабатывает DELETE /keys/{id}.
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

// ServeHTTP godoc
// @Summary Удалить ключ
// @Tags Keys
// @Param id path int true "ID ключа"
// @Param notify query bool false "Уведомить пользователя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /keys/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.keys.remove"
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

	res, err := h.service.Delete(r.Context(), id, request.Notify(r), actor)
	if err != nil {
		response.Fail(w, r, log, err, "could not delete key")
		return
	}

	if res.ExternalError != "" {
		log.Warn("key deleted locally, panel cleanup failed",
			slog.Int64("key_id", id), slog.String("external_error", res.ExternalError))
	} else {
		log.Info("key deleted", slog.Int64("key_id", id))
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
