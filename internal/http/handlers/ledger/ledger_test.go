package ledger

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

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
	ledgersvc "github.com/magabrotheeeer/squad-orchestrator/internal/services/ledger"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ApplyDelta(ctx context.Context, d models.Delta) (*models.Transaction, error) {
	args := m.Called(ctx, d)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

func (m *ServiceMock) Refund(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	args := m.Called(ctx, transactionID)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}

func (m *ServiceMock) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	args := m.Called(ctx, userID)
	txs, _ := args.Get(0).([]models.Transaction)
	return txs, args.Error(1)
}

func (m *ServiceMock) Reconcile(ctx context.Context, userID int64) (*ledgersvc.Reconciliation, error) {
	args := m.Called(ctx, userID)
	rec, _ := args.Get(0).(*ledgersvc.Reconciliation)
	return rec, args.Error(1)
}

func newHandler(svc *ServiceMock) *Handler {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "credit",
			body: `{"user_id":5,"amount":"150.50"}`,
			setup: func(m *ServiceMock) {
				m.On("ApplyDelta", mock.Anything, models.Delta{
					UserID: 5, Amount: 15050, Reason: models.ReasonAdminCredit,
					Method: ledgersvc.MethodInternal, AllowNegative: true,
				}).Return(&models.Transaction{ID: 1, UserID: 5, Amount: 15050}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"amount":15050`,
		},
		{
			name: "debit may go negative",
			body: `{"user_id":5,"amount":"-20"}`,
			setup: func(m *ServiceMock) {
				m.On("ApplyDelta", mock.Anything, mock.MatchedBy(func(d models.Delta) bool {
					return d.Amount == -2000 && d.Reason == models.ReasonAdminDebit && d.AllowNegative
				})).Return(&models.Transaction{ID: 2, UserID: 5, Amount: -2000}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"amount":-2000`,
		},
		{
			name:       "zero amount",
			body:       `{"user_id":5,"amount":"0"}`,
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "amount must not be zero",
		},
		{
			name:       "three decimal places",
			body:       `{"user_id":5,"amount":"1.005"}`,
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "missing user",
			body:       `{"amount":"10"}`,
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "bad json",
			body:       `{`,
			setup:      func(*ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown user",
			body: `{"user_id":9,"amount":"10"}`,
			setup: func(m *ServiceMock) {
				m.On("ApplyDelta", mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("ledger.ApplyDelta: %w", models.ErrNotFound)).Once()
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)

			req := httptest.NewRequest(http.MethodPost, "/ledger/apply", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newHandler(svc).Apply(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestRefund(t *testing.T) {
	svc := new(ServiceMock)
	orig := int64(7)
	svc.On("Refund", mock.Anything, int64(7)).
		Return(&models.Transaction{ID: 8, Amount: -100, RefundOf: &orig}, nil).Once()
	svc.On("Refund", mock.Anything, int64(7)).
		Return(nil, fmt.Errorf("ledger.Refund: %w", models.ErrAlreadyUsed)).Once()
	h := newHandler(svc)

	rec := httptest.NewRecorder()
	h.Refund(rec, httptest.NewRequest(http.MethodPost, "/ledger/refund", strings.NewReader(`{"transaction_id":7}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"refund_of":7`)

	rec = httptest.NewRecorder()
	h.Refund(rec, httptest.NewRequest(http.MethodPost, "/ledger/refund", strings.NewReader(`{"transaction_id":7}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.AssertExpectations(t)
}

func withUser(id string, actor models.Actor) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middlewarectx.WithActor(ctx, actor))
}

func TestHistory(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("History", mock.Anything, int64(3)).Return(nil, nil).Once()
	h := newHandler(svc)

	rec := httptest.NewRecorder()
	h.History(rec, withUser("3", models.SelfService(3)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"transactions":[]`)

	rec = httptest.NewRecorder()
	h.History(rec, withUser("4", models.SelfService(3)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.History(rec, withUser("abc", models.Admin()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertExpectations(t)
}

func TestReconcile(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("Reconcile", mock.Anything, int64(3)).
		Return(&ledgersvc.Reconciliation{UserID: 3, Balance: 500, LedgerSum: 400}, nil).Once()

	rec := httptest.NewRecorder()
	newHandler(svc).Reconcile(rec, withUser("3", models.Admin()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"consistent":false`)
	svc.AssertExpectations(t)
}
