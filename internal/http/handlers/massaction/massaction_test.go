package massaction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

type ExecutorMock struct {
	mock.Mock
}

func (m *ExecutorMock) Execute(ctx context.Context, action models.MassAction, filter models.TargetFilter) (*models.MassActionResult, error) {
	args := m.Called(ctx, action, filter)
	res, _ := args.Get(0).(*models.MassActionResult)
	return res, args.Error(1)
}

func TestMassActionHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*ExecutorMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "extend days for selected users",
			body: `{"action":"extend_days","params":{"days":7},"filter":{"user_ids":[1,2]}}`,
			setup: func(m *ExecutorMock) {
				m.On("Execute", mock.Anything, &models.ExtendDaysAction{Days: 7}, models.TargetFilter{UserIDs: []int64{1, 2}}).
					Return(&models.MassActionResult{
						Action:    models.MassExtendDays,
						Succeeded: []int64{1},
						Failed:    []models.ItemFailure{{ID: 2, Error: "no keys"}},
					}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"failed":[{"id":2,"error":"no keys"}]`,
		},
		{
			name: "action without params",
			body: `{"action":"reset_trial"}`,
			setup: func(m *ExecutorMock) {
				m.On("Execute", mock.Anything, &models.ResetTrialAction{}, models.TargetFilter{}).
					Return(&models.MassActionResult{Action: models.MassResetTrial, Succeeded: []int64{}, Failed: []models.ItemFailure{}}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"action":"reset_trial"`,
		},
		{
			name:       "unknown action",
			body:       `{"action":"drop_database"}`,
			setup:      func(*ExecutorMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "unknown mass action",
		},
		{
			name:       "missing action",
			body:       `{"params":{}}`,
			setup:      func(*ExecutorMock) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "invalid params rejected by executor",
			body: `{"action":"set_partner","params":{"rate":150}}`,
			setup: func(m *ExecutorMock) {
				m.On("Execute", mock.Anything, &models.SetPartnerAction{Rate: 150}, models.TargetFilter{}).
					Return(nil, fmt.Errorf("massaction.Execute: %w", models.ErrInvalidArgument)).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "empty body",
			body:       ``,
			setup:      func(*ExecutorMock) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := new(ExecutorMock)
			tt.setup(ex)
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), ex)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mass-actions", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			ex.AssertExpectations(t)
		})
	}
}
