package register

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

type UsersMock struct {
	mock.Mock
}

func (m *UsersMock) EnsureUser(ctx context.Context, nu models.NewUser) (*models.User, bool, error) {
	args := m.Called(ctx, nu)
	u, _ := args.Get(0).(*models.User)
	return u, args.Bool(1), args.Error(2)
}

type TokensMock struct {
	mock.Mock
}

func (m *TokensMock) IssueUserToken(user *models.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterHandler(t *testing.T) {
	user := &models.User{ID: 5, TelegramID: 777, ReferralCode: "REF777"}

	tests := []struct {
		name       string
		body       string
		setup      func(*UsersMock, *TokensMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "new user",
			body: `{"telegram_id":777,"username":"bob","referral_code":"ref100"}`,
			setup: func(u *UsersMock, tk *TokensMock) {
				u.On("EnsureUser", mock.Anything, models.NewUser{TelegramID: 777, Username: "bob", ReferralCode: "ref100"}).
					Return(user, true, nil).Once()
				tk.On("IssueUserToken", user).Return("jwt", nil).Once()
			},
			wantStatus: http.StatusCreated,
			wantBody:   `"token":"jwt"`,
		},
		{
			name: "existing user",
			body: `{"telegram_id":777}`,
			setup: func(u *UsersMock, tk *TokensMock) {
				u.On("EnsureUser", mock.Anything, models.NewUser{TelegramID: 777}).Return(user, false, nil).Once()
				tk.On("IssueUserToken", user).Return("jwt", nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"created":false`,
		},
		{
			name:       "missing telegram id",
			body:       `{"username":"bob"}`,
			setup:      func(*UsersMock, *TokensMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "TelegramID",
		},
		{
			name: "storage error",
			body: `{"telegram_id":777}`,
			setup: func(u *UsersMock, _ *TokensMock) {
				u.On("EnsureUser", mock.Anything, mock.Anything).Return(nil, false, errors.New("db")).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "could not register user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, tokens := new(UsersMock), new(TokensMock)
			tt.setup(users, tokens)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tt.body))
			New(newNoopLogger(), users, tokens).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			var got map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			users.AssertExpectations(t)
			tokens.AssertExpectations(t)
		})
	}
}
