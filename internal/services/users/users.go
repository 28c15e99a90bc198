// Package users регистрирует пользователей Telegram и управляет их
// учётными флагами: чёрный список, пробный период, партнёрство.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Repository описывает хранилище пользователей.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	SetBlacklist(ctx context.Context, userID int64, inBlacklist bool, reason string) error
	SetTrialUsed(ctx context.Context, userID int64, used bool) error
	SetPartner(ctx context.Context, userID int64, isPartner bool, rate int) error
	IncrementReferralCount(ctx context.Context, userID int64) error
}

// Service — сервис пользователей.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создаёт Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// ReferralCode возвращает реферальный код пользователя с telegramID.
func ReferralCode(telegramID int64) string {
	return fmt.Sprintf("REF%d", telegramID)
}

// EnsureUser возвращает пользователя по telegram id, создавая его при первом
// обращении. Неизвестный или собственный реферальный код игнорируется.
// created == true, если пользователь создан этим вызовом.
func (s *Service) EnsureUser(ctx context.Context, nu models.NewUser) (user *models.User, created bool, err error) {
	const op = "users.EnsureUser"
	if nu.TelegramID <= 0 {
		return nil, false, fmt.Errorf("%s: telegram id must be positive: %w", op, models.ErrInvalidArgument)
	}

	existing, err := s.repo.GetUserByTelegramID(ctx, nu.TelegramID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	u := &models.User{
		TelegramID:   nu.TelegramID,
		Username:     nu.Username,
		FullName:     nu.FullName,
		Status:       models.UserStatusActive,
		ReferralCode: ReferralCode(nu.TelegramID),
	}
	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		referrer, err := s.referrer(ctx, nu.ReferralCode, u.ReferralCode)
		if err != nil {
			return err
		}
		if referrer != nil {
			u.ReferredBy = &referrer.ID
		}
		if _, err = s.repo.CreateUser(ctx, u); err != nil {
			return err
		}
		if referrer != nil {
			return s.repo.IncrementReferralCount(ctx, referrer.ID)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	attrs := []any{slog.String("op", op), slog.Int64("user_id", u.ID), slog.Int64("telegram_id", u.TelegramID)}
	if u.ReferredBy != nil {
		attrs = append(attrs, slog.Int64("referred_by", *u.ReferredBy))
	}
	s.log.Info("user registered", attrs...)
	return u, true, nil
}

func (s *Service) referrer(ctx context.Context, code, own string) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == own {
		return nil, nil
	}
	ref, err := s.repo.GetUserByReferralCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return ref, err
}

// Get возвращает пользователя. Пользователь видит только себя.
func (s *Service) Get(ctx context.Context, userID int64, actor models.Actor) (*models.User, error) {
	const op = "users.Get"
	if !actor.CanAccess(userID) {
		return nil, fmt.Errorf("%s: user %d: %w", op, userID, models.ErrNotFound)
	}
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Ban помещает пользователя в чёрный список.
func (s *Service) Ban(ctx context.Context, userID int64, reason string) error {
	const op = "users.Ban"
	if err := s.repo.SetBlacklist(ctx, userID, true, reason); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user banned", slog.String("op", op), slog.Int64("user_id", userID), slog.String("reason", reason))
	return nil
}

// Unban убирает пользователя из чёрного списка.
func (s *Service) Unban(ctx context.Context, userID int64) error {
	const op = "users.Unban"
	if err := s.repo.SetBlacklist(ctx, userID, false, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetTrial разрешает пользователю ещё один пробный период.
func (s *Service) ResetTrial(ctx context.Context, userID int64) error {
	const op = "users.ResetTrial"
	if err := s.repo.SetTrialUsed(ctx, userID, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetPartner делает пользователя партнёром со ставкой rate процентов.
func (s *Service) SetPartner(ctx context.Context, userID int64, rate int) error {
	const op = "users.SetPartner"
	if rate < 0 || rate > 100 {
		return fmt.Errorf("%s: rate %d out of range: %w", op, rate, models.ErrInvalidArgument)
	}
	if err := s.repo.SetPartner(ctx, userID, true, rate); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RemovePartner снимает партнёрский статус. Накопленный партнёрский баланс сохраняется.
func (s *Service) RemovePartner(ctx context.Context, userID int64) error {
	const op = "users.RemovePartner"
	if err := s.repo.SetPartner(ctx, userID, false, 0); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
