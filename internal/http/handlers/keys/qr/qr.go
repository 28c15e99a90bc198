// Package qr отдаёт QR-код ссылки подписки ключа в PNG.
package qr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/request"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Size — сторона PNG в пикселях.
const Size = 256

// Service читает ключ с учётом прав Actor.
type Service interface {
	Get(ctx context.Context, keyID int64, actor models.Actor) (*models.KeyView, error)
}

// Handler обрабатывает GET /keys/{id}/qr.
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
// @Summary QR-код подписки
// @Tags Keys
// @Produce png
// @Param id path int true "ID ключа"
// @Success 200 {file} binary
// @Failure 404 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /keys/{id}/qr [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.keys.qr"
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
	if view.SubscriptionURL == "" {
		response.Fail(w, r, log, fmt.Errorf("%w: key %d has no subscription url", models.ErrNotFound, id), "no subscription url")
		return
	}

	png, err := qrcode.Encode(view.SubscriptionURL, qrcode.Medium, Size)
	if err != nil {
		response.Fail(w, r, log, err, "failed to generate qr code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Warn("failed to write qr code", sl.Err(err))
	}
}
