package request

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

func withParam(r *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestPathID(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{value: "42", want: 42},
		{value: "0", wantErr: true},
		{value: "-3", wantErr: true},
		{value: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			r := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", tt.value)
			got, err := PathID(r, "id")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Days int `json:"days"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"days":5}`))
	require.NoError(t, Decode(r, &v))
	assert.Equal(t, 5, v.Days)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.ErrorIs(t, Decode(r, &v), ErrEmptyBody)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.Error(t, Decode(r, &v))
}

func TestActor(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := httptest.NewRecorder()
	_, ok := Actor(w, httptest.NewRequest(http.MethodGet, "/", nil), log)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(middlewarectx.WithActor(r.Context(), models.SelfService(7)))
	actor, ok := Actor(httptest.NewRecorder(), r, log)
	assert.True(t, ok)
	assert.Equal(t, int64(7), actor.UserID)
}

func TestNotify(t *testing.T) {
	assert.True(t, Notify(httptest.NewRequest(http.MethodDelete, "/keys/1?notify=true", nil)))
	assert.False(t, Notify(httptest.NewRequest(http.MethodDelete, "/keys/1", nil)))
}
