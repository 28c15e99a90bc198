// Package auth отвечает за вход операторов панели и выпуск токенов
// мини-приложения для пользователей Telegram.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/jwt"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/password"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// ErrInvalidCredentials — неверный логин или пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminRepository описывает хранилище операторов.
type AdminRepository interface {
	// CreateAdmin создаёт оператора. false, если логин уже занят.
	CreateAdmin(ctx context.Context, username, passwordHash string) (bool, error)

	// GetAdminByUsername возвращает оператора по логину или ErrNotFound.
	GetAdminByUsername(ctx context.Context, username string) (*models.Operator, error)
}

// AuthService выпускает и проверяет JWT.
type AuthService struct {
	admins   AdminRepository
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(admins AdminRepository, jwtMaker jwt.Maker, log *slog.Logger) *AuthService {
	return &AuthService{
		admins:   admins,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// EnsureAdmin создаёт оператора при первом запуске. Существующий оператор
// не изменяется.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, rawPassword string) error {
	const op = "auth.EnsureAdmin"
	if username == "" {
		return nil
	}
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	created, err := s.admins.CreateAdmin(ctx, username, hashed)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if created {
		s.log.Info("bootstrap admin created", slog.String("op", op), slog.String("username", username))
	}
	return nil
}

// Login проверяет пароль оператора и выпускает токен с ролью admin.
func (s *AuthService) Login(ctx context.Context, username, rawPassword string) (string, error) {
	const op = "auth.Login"
	admin, err := s.admins.GetAdminByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(admin.PasswordHash, rawPassword); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	token, err := s.jwtMaker.GenerateToken(admin.Username, models.RoleAdmin, 0)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// IssueUserToken выпускает токен мини-приложения для пользователя.
func (s *AuthService) IssueUserToken(user *models.User) (string, error) {
	const op = "auth.IssueUserToken"
	token, err := s.jwtMaker.GenerateToken(strconv.FormatInt(user.TelegramID, 10), models.RoleUser, user.ID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// ValidateToken проверяет JWT и возвращает Actor, от имени которого
// будет выполняться запрос.
func (s *AuthService) ValidateToken(token string) (models.Actor, error) {
	const op = "auth.ValidateToken"
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%s: %w", op, err)
	}
	switch claims.Role {
	case models.RoleAdmin:
		return models.Admin(), nil
	case models.RoleUser:
		if claims.UserID <= 0 {
			return models.Actor{}, fmt.Errorf("%s: user token without uid", op)
		}
		return models.SelfService(claims.UserID), nil
	default:
		return models.Actor{}, fmt.Errorf("%s: unknown role %q", op, claims.Role)
	}
}
