package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// CreateAdmin сохраняет оператора панели. Если логин занят, ничего не делает
// и возвращает false.
func (s *Storage) CreateAdmin(ctx context.Context, username, passwordHash string) (bool, error) {
	const op = "storage.CreateAdmin"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO admins (username, password_hash) VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING`, username, passwordHash)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// GetAdminByUsername возвращает оператора по логину.
func (s *Storage) GetAdminByUsername(ctx context.Context, username string) (*models.Operator, error) {
	const op = "storage.GetAdminByUsername"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	a := &models.Operator{}
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM admins WHERE username = $1`, username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash); err != nil {
		return nil, wrapNotFound(op, err)
	}
	return a, nil
}
