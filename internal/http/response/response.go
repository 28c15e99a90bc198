// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков.
package response

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/locker"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/auth"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Status: статус запроса ("OK" или "Error").
// Error: текст ошибки (опционально, при неуспехе).
// Data: данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK: значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "gt", "gte", "lte":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is out of range", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// statuses: соответствие доменных ошибок HTTP-статусам, проверяется по порядку.
var statuses = []struct {
	err    error
	status int
}{
	{models.ErrInsufficientBalance, http.StatusPaymentRequired},
	{models.ErrExternalPanelUnavailable, http.StatusServiceUnavailable},
	{models.ErrNotFound, http.StatusNotFound},
	{models.ErrBlacklisted, http.StatusForbidden},
	{models.ErrPromoExhausted, http.StatusGone},
	{models.ErrPromoExpired, http.StatusGone},
	{models.ErrNoEligibleSquad, http.StatusConflict},
	{models.ErrAlreadyUsed, http.StatusConflict},
	{models.ErrSquadFull, http.StatusConflict},
	{locker.ErrBusy, http.StatusConflict},
	{models.ErrInvalidArgument, http.StatusUnprocessableEntity},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
}

// StatusFor переводит ошибку сервиса в HTTP-статус. Неизвестные ошибки дают 500.
func StatusFor(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Fail логирует ошибку и отвечает статусом из StatusFor.
// Текст внутренних ошибок клиенту не показывается.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, msg string) {
	status := StatusFor(err)
	text := msg + ": " + err.Error()
	if status == http.StatusInternalServerError {
		log.Error(msg, sl.Err(err))
		text = msg
	} else {
		log.Warn(msg, sl.Err(err), slog.Int("status", status))
	}
	render.Status(r, status)
	render.JSON(w, r, Error(text))
}

// BadRequest отвечает 400 с сообщением msg.
func BadRequest(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, msg string) {
	log.Warn(msg, sl.Err(err))
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Error(msg))
}

// Invalid отвечает 422 с описанием ошибок валидации.
func Invalid(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.Warn("invalid request", sl.Err(err))
	render.Status(r, http.StatusUnprocessableEntity)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		render.JSON(w, r, ValidationError(verrs))
		return
	}
	render.JSON(w, r, Error(err.Error()))
}
