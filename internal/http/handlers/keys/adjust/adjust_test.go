package adjust

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) result(args mock.Arguments) (*models.Key, error) {
	k, _ := args.Get(0).(*models.Key)
	return k, args.Error(1)
}

func (m *ServiceMock) Reduce(ctx context.Context, keyID int64, days int, notify bool) (*models.Key, error) {
	return m.result(m.Called(ctx, keyID, days, notify))
}

func (m *ServiceMock) SetTrafficLimit(ctx context.Context, keyID, gb int64, notify bool) (*models.Key, error) {
	return m.result(m.Called(ctx, keyID, gb, notify))
}

func (m *ServiceMock) SetDeviceLimit(ctx context.Context, keyID int64, devices int, notify bool) (*models.Key, error) {
	return m.result(m.Called(ctx, keyID, devices, notify))
}

func (m *ServiceMock) Block(ctx context.Context, keyID int64, reason string, notify bool) (*models.Key, error) {
	return m.result(m.Called(ctx, keyID, reason, notify))
}

func (m *ServiceMock) Unblock(ctx context.Context, keyID int64, notify bool) (*models.Key, error) {
	return m.result(m.Called(ctx, keyID, notify))
}

func (m *ServiceMock) Reassign(ctx context.Context, keyID int64, preferred []string) (*models.Key, error) {
	return m.result(m.Called(ctx, keyID, preferred))
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(h http.HandlerFunc, id, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/keys/"+id, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestAdjustHandlers(t *testing.T) {
	key := &models.Key{ID: 4}

	tests := []struct {
		name       string
		route      func(h *Handler) http.HandlerFunc
		body       string
		setup      func(*ServiceMock)
		wantStatus int
	}{
		{
			name:  "reduce",
			route: func(h *Handler) http.HandlerFunc { return h.Reduce },
			body:  `{"days":5,"notify":true}`,
			setup: func(m *ServiceMock) {
				m.On("Reduce", mock.Anything, int64(4), 5, true).Return(key, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "reduce requires days",
			route:      func(h *Handler) http.HandlerFunc { return h.Reduce },
			body:       `{}`,
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:  "traffic unlimited",
			route: func(h *Handler) http.HandlerFunc { return h.Traffic },
			body:  `{"gb":0}`,
			setup: func(m *ServiceMock) {
				m.On("SetTrafficLimit", mock.Anything, int64(4), int64(0), false).Return(key, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "negative devices",
			route:      func(h *Handler) http.HandlerFunc { return h.Devices },
			body:       `{"devices":-1}`,
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:  "block with empty body",
			route: func(h *Handler) http.HandlerFunc { return h.Block },
			body:  ``,
			setup: func(m *ServiceMock) {
				m.On("Block", mock.Anything, int64(4), "", false).Return(key, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "unblock unknown key",
			route: func(h *Handler) http.HandlerFunc { return h.Unblock },
			body:  `{}`,
			setup: func(m *ServiceMock) {
				m.On("Unblock", mock.Anything, int64(4), false).
					Return(nil, fmt.Errorf("lifecycle.Unblock: %w", models.ErrNotFound)).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:  "reassign without capacity",
			route: func(h *Handler) http.HandlerFunc { return h.Reassign },
			body:  `{"squad_preferences":["sq-1"]}`,
			setup: func(m *ServiceMock) {
				m.On("Reassign", mock.Anything, int64(4), []string{"sq-1"}).
					Return(nil, fmt.Errorf("registry.Assign: %w", models.ErrNoEligibleSquad)).Once()
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)

			rec := serve(tt.route(New(newNoopLogger(), svc)), "4", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
