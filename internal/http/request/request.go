// Package request разбирает общие части HTTP-запросов: параметры пути,
// JSON-тело и Actor из контекста.
package request

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/response"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// ErrEmptyBody возвращается Decode для пустого тела запроса.
var ErrEmptyBody = errors.New("empty request body")

// PathID разбирает положительный числовой параметр пути name.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// Decode разбирает JSON-тело запроса в v.
func Decode(r *http.Request, v any) error {
	err := render.DecodeJSON(r.Body, v)
	if errors.Is(err, io.EOF) {
		return ErrEmptyBody
	}
	return err
}

// Actor достаёт Actor из контекста. Если его нет, отвечает 401 и возвращает false.
func Actor(w http.ResponseWriter, r *http.Request, log *slog.Logger) (models.Actor, bool) {
	actor, ok := middlewarectx.ActorFrom(r.Context())
	if !ok {
		log.Error("actor not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return models.Actor{}, false
	}
	return actor, true
}

// Notify читает флаг уведомления из query-параметра notify.
func Notify(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("notify"))
	return v
}
