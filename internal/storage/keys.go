package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

const keyColumns = `id, user_id, external_uuid, subscription_url, status, expiry_date,
	traffic_used, traffic_limit, devices_used, devices_limit, squad_uuid, type,
	is_trial, is_forever, blocked, block_reason, created_at`

func scanKey(row scanner) (*models.Key, error) {
	k := &models.Key{}
	var squad sql.NullString
	if err := row.Scan(&k.ID, &k.UserID, &k.ExternalUUID, &k.SubscriptionURL, &k.Status,
		&k.ExpiryDate, &k.TrafficUsed, &k.TrafficLimit, &k.DevicesUsed, &k.DevicesLimit,
		&squad, &k.Type, &k.IsTrial, &k.IsForever, &k.Blocked, &k.BlockReason,
		&k.CreatedAt); err != nil {
		return nil, err
	}
	if squad.Valid {
		k.SquadUUID = &squad.String
	}
	return k, nil
}

func nullSquad(k *models.Key) sql.NullString {
	if k.SquadUUID == nil || *k.SquadUUID == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *k.SquadUUID, Valid: true}
}

func (s *Storage) queryKeys(ctx context.Context, op, query string, args ...any) ([]models.Key, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var keys []models.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		keys = append(keys, *k)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return keys, nil
}

// CreateKey сохраняет ключ и заполняет его ID и CreatedAt.
func (s *Storage) CreateKey(ctx context.Context, k *models.Key) (int64, error) {
	const op = "storage.CreateKey"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	query := `INSERT INTO keys (user_id, external_uuid, subscription_url, status, expiry_date,
			      traffic_limit, devices_limit, squad_uuid, type, is_trial, is_forever)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  RETURNING id, created_at`
	if err := s.conn(ctx).QueryRowContext(ctx, query,
		k.UserID, k.ExternalUUID, k.SubscriptionURL, k.Status, k.ExpiryDate,
		k.TrafficLimit, k.DevicesLimit, nullSquad(k), k.Type, k.IsTrial, k.IsForever,
	).Scan(&k.ID, &k.CreatedAt); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return k.ID, nil
}

// GetKey возвращает ключ по ID.
func (s *Storage) GetKey(ctx context.Context, id int64) (*models.Key, error) {
	const op = "storage.GetKey"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	k, err := scanKey(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM keys WHERE id = $1`, id))
	if err != nil {
		return nil, wrapNotFound(op, err)
	}
	return k, nil
}

// GetKeyForUpdate читает ключ с блокировкой строки. Только внутри InTx.
func (s *Storage) GetKeyForUpdate(ctx context.Context, id int64) (*models.Key, error) {
	const op = "storage.GetKeyForUpdate"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	k, err := scanKey(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM keys WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapNotFound(op, err)
	}
	return k, nil
}

// ListKeysByUser возвращает ключи пользователя в порядке создания.
func (s *Storage) ListKeysByUser(ctx context.Context, userID int64) ([]models.Key, error) {
	const op = "storage.ListKeysByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryKeys(ctx, op,
		`SELECT `+keyColumns+` FROM keys WHERE user_id = $1 ORDER BY id`, userID)
}

// ListAllKeys возвращает все ключи. Используется сверкой с панелью.
func (s *Storage) ListAllKeys(ctx context.Context) ([]models.Key, error) {
	const op = "storage.ListAllKeys"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryKeys(ctx, op, `SELECT `+keyColumns+` FROM keys ORDER BY id`)
}

// UpdateKey записывает изменяемые поля ключа.
func (s *Storage) UpdateKey(ctx context.Context, k *models.Key) error {
	const op = "storage.UpdateKey"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE keys SET status = $2, expiry_date = $3, traffic_limit = $4, devices_limit = $5,
		                 squad_uuid = $6, blocked = $7, block_reason = $8, subscription_url = $9,
		                 is_forever = $10
		 WHERE id = $1`,
		k.ID, k.Status, k.ExpiryDate, k.TrafficLimit, k.DevicesLimit, nullSquad(k),
		k.Blocked, k.BlockReason, k.SubscriptionURL, k.IsForever)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// UpdateKeyTraffic сохраняет расход трафика, полученный из панели.
// devices_used панель в списке пользователей не отдаёт, поэтому он не трогается.
func (s *Storage) UpdateKeyTraffic(ctx context.Context, externalUUID string, trafficUsed int64) error {
	const op = "storage.UpdateKeyTraffic"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE keys SET traffic_used = $2 WHERE external_uuid = $1`,
		externalUUID, trafficUsed)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteKey удаляет ключ.
func (s *Storage) DeleteKey(ctx context.Context, id int64) error {
	const op = "storage.DeleteKey"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// MarkExpiredKeys переводит в Expired активные ключи с истёкшим сроком.
// Заблокированные ключи не трогает: их статус определяет блокировка.
func (s *Storage) MarkExpiredKeys(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.MarkExpiredKeys"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE keys SET status = $1
		 WHERE status = $2 AND NOT blocked AND expiry_date <= $3`,
		models.KeyStatusExpired, models.KeyStatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// ListExpiringKeys возвращает активные ключи, истекающие в интервале [from, to).
func (s *Storage) ListExpiringKeys(ctx context.Context, from, to time.Time) ([]models.KeyInfo, error) {
	const op = "storage.ListExpiringKeys"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT k.id, k.user_id, u.telegram_id, u.username, k.expiry_date
		 FROM keys k JOIN users u ON u.id = k.user_id
		 WHERE NOT k.blocked AND NOT k.is_forever
		   AND k.expiry_date >= $1 AND k.expiry_date < $2
		 ORDER BY k.expiry_date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var infos []models.KeyInfo
	for rows.Next() {
		var ki models.KeyInfo
		if err = rows.Scan(&ki.KeyID, &ki.UserID, &ki.TelegramID, &ki.Username, &ki.ExpiryDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		infos = append(infos, ki)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return infos, nil
}
