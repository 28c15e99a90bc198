// Package register реализует первое обращение пользователя: бот передаёт
// данные Telegram-аккаунта, в ответ приходит пользователь и JWT для мини-приложения.
package register

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

// Users регистрирует пользователя или возвращает существующего.
type Users interface {
	EnsureUser(ctx context.Context, nu models.NewUser) (*models.User, bool, error)
}

// Tokens выпускает JWT пользователя.
type Tokens interface {
	IssueUserToken(user *models.User) (string, error)
}

// Handler обрабатывает POST /users.
type Handler struct {
	log      *slog.Logger
	users    Users
	tokens   Tokens
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, users Users, tokens Tokens) *Handler {
	return &Handler{
		log:      log,
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Description Создаёт пользователя при первом обращении к боту. Повторный вызов возвращает существующего.
// @Tags Users
// @Accept  json
// @Produce  json
// @Param request body models.NewUser true "Данные Telegram-аккаунта"
// @Success 200 {object} response.Response
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /users [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.NewUser
	if err := request.Decode(r, &req); err != nil {
		response.BadRequest(w, r, log, err, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, log, err)
		return
	}

	user, created, err := h.users.EnsureUser(r.Context(), req)
	if err != nil {
		response.Fail(w, r, log, err, "could not register user")
		return
	}
	token, err := h.tokens.IssueUserToken(user)
	if err != nil {
		response.Fail(w, r, log, err, "could not issue token")
		return
	}

	if created {
		log.Info("user registered", slog.Int64("user_id", user.ID))
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user":    user,
		"created": created,
		"token":   token,
	}))
}
