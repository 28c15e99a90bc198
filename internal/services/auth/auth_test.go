package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	customjwt "github.com/magabrotheeeer/squad-orchestrator/internal/lib/jwt"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/password"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/auth"
)

// Мок для AdminRepository
type AdminRepoMock struct {
	mock.Mock
}

func (m *AdminRepoMock) CreateAdmin(ctx context.Context, username, passwordHash string) (bool, error) {
	args := m.Called(ctx, username, passwordHash)
	return args.Bool(0), args.Error(1)
}

func (m *AdminRepoMock) GetAdminByUsername(ctx context.Context, username string) (*models.Operator, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Operator), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthService_Login(t *testing.T) {
	hash, err := password.GetHash("correct-horse")
	require.NoError(t, err)
	admin := &models.Operator{ID: 1, Username: "root", PasswordHash: hash}

	tests := []struct {
		name       string
		username   string
		password   string
		setupMocks func(r *AdminRepoMock)
		wantErr    error
	}{
		{
			name:     "successful login",
			username: "root",
			password: "correct-horse",
			setupMocks: func(r *AdminRepoMock) {
				r.On("GetAdminByUsername", mock.Anything, "root").Return(admin, nil).Once()
			},
		},
		{
			name:     "wrong password",
			username: "root",
			password: "wrong-horse",
			setupMocks: func(r *AdminRepoMock) {
				r.On("GetAdminByUsername", mock.Anything, "root").Return(admin, nil).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:     "unknown admin",
			username: "ghost",
			password: "whatever1",
			setupMocks: func(r *AdminRepoMock) {
				r.On("GetAdminByUsername", mock.Anything, "ghost").
					Return(nil, models.ErrNotFound).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:     "storage error is not hidden",
			username: "root",
			password: "correct-horse",
			setupMocks: func(r *AdminRepoMock) {
				r.On("GetAdminByUsername", mock.Anything, "root").
					Return(nil, errors.New("db down")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(AdminRepoMock)
			tt.setupMocks(repo)
			maker := customjwt.NewJWTMaker("secret", time.Hour)
			svc := auth.NewAuthService(repo, maker, newNoopLogger())

			token, err := svc.Login(context.Background(), tt.username, tt.password)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.name == "storage error is not hidden":
				require.Error(t, err)
				assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
			default:
				require.NoError(t, err)
				actor, err := svc.ValidateToken(token)
				require.NoError(t, err)
				assert.True(t, actor.IsAdmin())
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	repo := new(AdminRepoMock)
	repo.On("CreateAdmin", mock.Anything, "root", mock.MatchedBy(func(hash string) bool {
		return password.CompareHash(hash, "correct-horse") == nil
	})).Return(true, nil).Once()
	svc := auth.NewAuthService(repo, customjwt.NewJWTMaker("secret", time.Hour), newNoopLogger())

	require.NoError(t, svc.EnsureAdmin(context.Background(), "root", "correct-horse"))
	require.NoError(t, svc.EnsureAdmin(context.Background(), "", ""))
	assert.ErrorIs(t, svc.EnsureAdmin(context.Background(), "root", "short"), password.ErrTooShort)
	repo.AssertExpectations(t)
}

func TestAuthService_UserToken(t *testing.T) {
	svc := auth.NewAuthService(new(AdminRepoMock), customjwt.NewJWTMaker("secret", time.Hour), newNoopLogger())

	token, err := svc.IssueUserToken(&models.User{ID: 42, TelegramID: 100500})
	require.NoError(t, err)

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.False(t, actor.IsAdmin())
	assert.Equal(t, int64(42), actor.UserID)

	other := customjwt.NewJWTMaker("other-secret", time.Hour)
	forged, err := other.GenerateToken("root", models.RoleAdmin, 0)
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.Error(t, err)
}
