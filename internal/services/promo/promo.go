// Package promo создаёт и применяет промокоды.
package promo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Repository описывает хранилище промокодов.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreatePromo(ctx context.Context, p *models.Promo) (int64, error)
	GetPromoByCodeForUpdate(ctx context.Context, code string) (*models.Promo, error)
	InsertPromoUse(ctx context.Context, promoID, userID int64) (bool, error)
	IncrementPromoUses(ctx context.Context, promoID int64) error
	ReleasePromoUse(ctx context.Context, promoID, userID int64) error
}

// Ledger начисляет бонус на баланс.
type Ledger interface {
	ApplyDelta(ctx context.Context, d models.Delta) (*models.Transaction, error)
}

// KeyIssuer выдаёт ключ по промокоду.
type KeyIssuer interface {
	Create(ctx context.Context, p models.CreateKeyParams, actor models.Actor) (*models.Key, error)
}

// Service — сервис промокодов.
type Service struct {
	repo   Repository
	ledger Ledger
	keys   KeyIssuer
	log    *slog.Logger
	now    func() time.Time
}

// New создаёт Service.
func New(repo Repository, ledger Ledger, keys KeyIssuer, log *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, keys: keys, log: log, now: time.Now}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create заводит промокод. Код приводится к верхнему регистру.
func (s *Service) Create(ctx context.Context, p models.Promo) (*models.Promo, error) {
	const op = "promo.Create"
	p.Code = normalize(p.Code)
	if p.Code == "" || !p.Type.Valid() || p.Value <= 0 || p.UsesLimit < 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidArgument)
	}
	p.IsActive = true
	p.UsesCount = 0
	if _, err := s.repo.CreatePromo(ctx, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("promo created", slog.String("op", op), slog.String("code", p.Code), slog.String("type", string(p.Type)))
	return &p, nil
}

// Apply применяет промокод code для пользователя userID.
// Каждый пользователь может применить код один раз. Пользователь из чёрного
// списка сам применить код не может.
//
// Бонус на баланс фиксируется одной транзакцией с использованием кода.
// Для подписки использование фиксируется первым, ключ выдаётся уже после
// коммита; если выдача не удалась, использование возвращается.
func (s *Service) Apply(ctx context.Context, userID int64, code string, actor models.Actor) (*models.PromoResult, error) {
	const op = "promo.Apply"
	if !actor.CanAccess(userID) {
		return nil, fmt.Errorf("%s: user %d: %w", op, userID, models.ErrNotFound)
	}
	code = normalize(code)
	if code == "" {
		return nil, fmt.Errorf("%s: empty code: %w", op, models.ErrInvalidArgument)
	}

	res := &models.PromoResult{Code: code}
	var promoID int64
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		p, err := s.reserve(ctx, userID, code, actor)
		if err != nil {
			return err
		}
		promoID = p.ID
		res.Type, res.Value = p.Type, p.Value
		switch p.Type {
		case models.PromoBalance:
			res.Transaction, err = s.ledger.ApplyDelta(ctx, models.Delta{
				UserID:             userID,
				Amount:             p.Value,
				Reason:             models.ReasonPromo,
				RelatedOperationID: "promo:" + code,
			})
			return err
		case models.PromoSubscription:
			return nil
		default:
			return fmt.Errorf("promo type %q: %w", p.Type, models.ErrInvalidArgument)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if res.Type == models.PromoSubscription {
		res.Key, err = s.keys.Create(ctx, models.CreateKeyParams{
			UserID: userID,
			Days:   int(res.Value),
			Notify: true,
		}, models.Admin())
		if err != nil {
			s.release(ctx, promoID, userID, code)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	s.log.Info("promo applied", slog.String("op", op), slog.String("code", code), slog.Int64("user_id", userID))
	return res, nil
}

// reserve проверяет промокод и фиксирует его использование пользователем.
// Вызывается внутри транзакции.
func (s *Service) reserve(ctx context.Context, userID int64, code string, actor models.Actor) (*models.Promo, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && user.InBlacklist {
		return nil, fmt.Errorf("user %d: %w", userID, models.ErrBlacklisted)
	}
	p, err := s.repo.GetPromoByCodeForUpdate(ctx, code)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("promo %s is disabled: %w", code, models.ErrNotFound)
	}
	if p.ExpiresAt != nil && !s.now().Before(*p.ExpiresAt) {
		return nil, fmt.Errorf("promo %s: %w", code, models.ErrPromoExpired)
	}
	if p.UsesLimit > 0 && p.UsesCount >= p.UsesLimit {
		return nil, fmt.Errorf("promo %s: %w", code, models.ErrPromoExhausted)
	}
	inserted, err := s.repo.InsertPromoUse(ctx, p.ID, userID)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("promo %s by user %d: %w", code, userID, models.ErrAlreadyUsed)
	}
	if err = s.repo.IncrementPromoUses(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) release(ctx context.Context, promoID, userID int64, code string) {
	const op = "promo.release"
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.InTx(ctx, func(ctx context.Context) error {
		return s.repo.ReleasePromoUse(ctx, promoID, userID)
	}); err != nil {
		s.log.Error("promo use not released after failed key issue",
			slog.String("op", op), slog.String("code", code), slog.Int64("user_id", userID), sl.Err(err))
	}
}
