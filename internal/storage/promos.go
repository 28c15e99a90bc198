package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// CreatePromo сохраняет промокод и возвращает его ID.
func (s *Storage) CreatePromo(ctx context.Context, p *models.Promo) (int64, error) {
	const op = "storage.CreatePromo"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var expiresAt sql.NullTime
	if p.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *p.ExpiresAt, Valid: true}
	}
	if err := s.conn(ctx).QueryRowContext(ctx,
		`INSERT INTO promos (code, type, value, uses_limit, expires_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.Code, p.Type, p.Value, p.UsesLimit, expiresAt, p.IsActive,
	).Scan(&p.ID); err != nil {
		return 0, wrapUnique(op, err)
	}
	return p.ID, nil
}

// GetPromoByCodeForUpdate читает промокод с блокировкой строки.
func (s *Storage) GetPromoByCodeForUpdate(ctx context.Context, code string) (*models.Promo, error) {
	const op = "storage.GetPromoByCodeForUpdate"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	p := &models.Promo{}
	var expiresAt sql.NullTime
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, code, type, value, uses_count, uses_limit, expires_at, is_active
		 FROM promos WHERE code = $1 FOR UPDATE`, code,
	).Scan(&p.ID, &p.Code, &p.Type, &p.Value, &p.UsesCount, &p.UsesLimit, &expiresAt, &p.IsActive)
	if err != nil {
		return nil, wrapNotFound(op, err)
	}
	if expiresAt.Valid {
		p.ExpiresAt = &expiresAt.Time
	}
	return p, nil
}

// InsertPromoUse фиксирует использование промокода пользователем.
// Возвращает false, если пользователь уже применял этот промокод.
func (s *Storage) InsertPromoUse(ctx context.Context, promoID, userID int64) (bool, error) {
	const op = "storage.InsertPromoUse"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO promo_uses (promo_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (promo_id, user_id) DO NOTHING`, promoID, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// IncrementPromoUses увеличивает счётчик использований.
func (s *Storage) IncrementPromoUses(ctx context.Context, promoID int64) error {
	const op = "storage.IncrementPromoUses"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE promos SET uses_count = uses_count + 1 WHERE id = $1`, promoID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// ReleasePromoUse отменяет использование промокода пользователем:
// удаляет отметку и уменьшает счётчик, если отметка была.
func (s *Storage) ReleasePromoUse(ctx context.Context, promoID, userID int64) error {
	const op = "storage.ReleasePromoUse"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM promo_uses WHERE promo_id = $1 AND user_id = $2`, promoID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return nil
	}
	if _, err = s.conn(ctx).ExecContext(ctx,
		`UPDATE promos SET uses_count = GREATEST(uses_count - 1, 0) WHERE id = $1`, promoID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
