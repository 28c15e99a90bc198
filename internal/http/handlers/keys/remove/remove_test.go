package remove

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Delete(ctx context.Context, keyID int64, notify bool, actor models.Actor) (*models.DeleteKeyResult, error) {
	args := m.Called(ctx, keyID, notify, actor)
	res, _ := args.Get(0).(*models.DeleteKeyResult)
	return res, args.Error(1)
}

func TestRemoveHandler(t *testing.T) {
	actor := models.SelfService(2)

	tests := []struct {
		name       string
		url        string
		setup      func(*ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "deleted",
			url:  "/keys/9?notify=true",
			setup: func(m *ServiceMock) {
				m.On("Delete", mock.Anything, int64(9), true, actor).
					Return(&models.DeleteKeyResult{KeyID: 9}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"key_id":9`,
		},
		{
			name: "panel failure is reported but not fatal",
			url:  "/keys/9",
			setup: func(m *ServiceMock) {
				m.On("Delete", mock.Anything, int64(9), false, actor).
					Return(&models.DeleteKeyResult{KeyID: 9, ExternalError: "panel timeout"}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"external_error":"panel timeout"`,
		},
		{
			name: "not found",
			url:  "/keys/9",
			setup: func(m *ServiceMock) {
				m.On("Delete", mock.Anything, int64(9), false, actor).
					Return(nil, fmt.Errorf("lifecycle.Delete: %w", models.ErrNotFound)).Once()
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)

			req := httptest.NewRequest(http.MethodDelete, tt.url, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "9")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			req = req.WithContext(middlewarectx.WithActor(ctx, actor))

			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}
