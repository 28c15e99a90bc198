// Package ledger реализует HTTP-ручки баланса и журнала транзакций.
package ledger

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
	ledgersvc "github.com/magabrotheeeer/squad-orchestrator/internal/services/ledger"
)

// Service — операции журнала, нужные ручкам.
type Service interface {
	ApplyDelta(ctx context.Context, d models.Delta) (*models.Transaction, error)
	Refund(ctx context.Context, transactionID int64) (*models.Transaction, error)
	History(ctx context.Context, userID int64) ([]models.Transaction, error)
	Reconcile(ctx context.Context, userID int64) (*ledgersvc.Reconciliation, error)
}

// ApplyRequest — ручное изменение баланса администратором.
// Amount в рублях со знаком: "-50" списывает 50 рублей.
type ApplyRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Amount string `json:"amount" validate:"required"`
}

// RefundRequest — возврат транзакции.
type RefundRequest struct {
	TransactionID int64 `json:"transaction_id" validate:"required,gt=0"`
}

// Handler обслуживает /ledger и историю транзакций пользователя.
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

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Apply godoc
// @Summary Изменить баланс пользователя
// @Description Админское начисление или списание. Списание может увести баланс в минус.
// @Tags Ledger
// @Accept json
// @Produce json
// @Param request body ApplyRequest true "Сумма в рублях со знаком"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Security BearerAuth
// @Router /ledger/apply [post]
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.ledger.Apply")

	var req ApplyRequest
	if err := request.Decode(r, &req); err != nil {
		response.BadRequest(w, r, log, err, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, log, err)
		return
	}
	amount, err := models.ParseRubles(req.Amount)
	if err != nil {
		response.Invalid(w, r, log, err)
		return
	}
	if amount == 0 {
		response.Invalid(w, r, log, errors.New("amount must not be zero"))
		return
	}

	reason := models.ReasonAdminCredit
	if amount < 0 {
		reason = models.ReasonAdminDebit
	}
	tx, err := h.service.ApplyDelta(r.Context(), models.Delta{
		UserID:        req.UserID,
		Amount:        amount,
		Reason:        reason,
		Method:        ledgersvc.MethodInternal,
		AllowNegative: true,
	})
	if err != nil {
		response.Fail(w, r, log, err, "failed to apply balance change")
		return
	}
	log.Info("balance changed", slog.Int64("user_id", req.UserID), slog.Int64("amount", amount))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"transaction": tx}))
}

// Refund godoc
// @Summary Вернуть транзакцию
// @Description Создает обратную транзакцию. Повторный возврат отклоняется.
// @Tags Ledger
// @Accept json
// @Produce json
// @Param request body RefundRequest true "ID транзакции"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Уже возвращена"
// @Security BearerAuth
// @Router /ledger/refund [post]
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.ledger.Refund")

	var req RefundRequest
	if err := request.Decode(r, &req); err != nil {
		response.BadRequest(w, r, log, err, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, log, err)
		return
	}

	tx, err := h.service.Refund(r.Context(), req.TransactionID)
	if err != nil {
		response.Fail(w, r, log, err, "failed to refund transaction")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"transaction": tx}))
}

// History godoc
// @Summary История транзакций пользователя
// @Tags Ledger
// @Produce json
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /users/{id}/transactions [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.ledger.History")

	userID, ok := h.accessibleUser(w, r, log)
	if !ok {
		return
	}
	txs, err := h.service.History(r.Context(), userID)
	if err != nil {
		response.Fail(w, r, log, err, "failed to load transactions")
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"transactions": txs}))
}

// Reconcile godoc
// @Summary Сверить баланс с журналом
// @Tags Ledger
// @Produce json
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response
// @Security BearerAuth
// @Router /users/{id}/reconcile [get]
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.ledger.Reconcile")

	userID, err := request.PathID(r, "id")
	if err != nil {
		response.BadRequest(w, r, log, err, "invalid user id")
		return
	}
	rec, err := h.service.Reconcile(r.Context(), userID)
	if err != nil {
		response.Fail(w, r, log, err, "failed to reconcile balance")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"reconciliation": rec}))
}

// accessibleUser разбирает {id} и проверяет, что актор имеет к нему доступ.
// Чужой пользователь для самообслуживания выглядит как несуществующий.
func (h *Handler) accessibleUser(w http.ResponseWriter, r *http.Request, log *slog.Logger) (int64, bool) {
	userID, err := request.PathID(r, "id")
	if err != nil {
		response.BadRequest(w, r, log, err, "invalid user id")
		return 0, false
	}
	actor, ok := request.Actor(w, r, log)
	if !ok {
		return 0, false
	}
	if !actor.CanAccess(userID) {
		response.Fail(w, r, log, models.ErrNotFound, "user not found")
		return 0, false
	}
	return userID, true
}
