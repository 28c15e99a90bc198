package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

const userColumns = `id, telegram_id, username, full_name, balance, status, in_blacklist,
	ban_reason, is_partner, partner_rate, partner_balance, referral_code, referred_by,
	referral_count, total_earned, trial_used, created_at`

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	var referredBy sql.NullInt64
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FullName, &u.Balance, &u.Status,
		&u.InBlacklist, &u.BanReason, &u.IsPartner, &u.PartnerRate, &u.PartnerBalance,
		&u.ReferralCode, &referredBy, &u.ReferralCount, &u.TotalEarned, &u.TrialUsed,
		&u.CreatedAt); err != nil {
		return nil, err
	}
	if referredBy.Valid {
		u.ReferredBy = &referredBy.Int64
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его ID.
func (s *Storage) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var referredBy sql.NullInt64
	if u.ReferredBy != nil {
		referredBy = sql.NullInt64{Int64: *u.ReferredBy, Valid: true}
	}
	query := `INSERT INTO users (telegram_id, username, full_name, status, referral_code, referred_by)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id, created_at`
	if err := s.conn(ctx).QueryRowContext(ctx, query,
		u.TelegramID, u.Username, u.FullName, u.Status, u.ReferralCode, referredBy,
	).Scan(&u.ID, &u.CreatedAt); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return u.ID, nil
}

// GetUser возвращает пользователя по ID.
func (s *Storage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, wrapNotFound(op, err)
	}
	return u, nil
}

// GetUserForUpdate читает пользователя с блокировкой строки до конца транзакции.
// Вне транзакции блокировка снимается сразу, поэтому вызывать только внутри InTx.
func (s *Storage) GetUserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUserForUpdate"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapNotFound(op, err)
	}
	return u, nil
}

// GetUserByTelegramID возвращает пользователя по его telegram id.
func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const op = "storage.GetUserByTelegramID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	if err != nil {
		return nil, wrapNotFound(op, err)
	}
	return u, nil
}

// GetUserByReferralCode возвращает пользователя по реферальному коду.
func (s *Storage) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	const op = "storage.GetUserByReferralCode"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
	if err != nil {
		return nil, wrapNotFound(op, err)
	}
	return u, nil
}

// AddBalance изменяет баланс на amount и возвращает новое значение.
// Проверку на уход в минус выполняет вызывающий.
func (s *Storage) AddBalance(ctx context.Context, userID, amount int64) (int64, error) {
	const op = "storage.AddBalance"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var balance int64
	err := s.conn(ctx).QueryRowContext(ctx,
		`UPDATE users SET balance = balance + $2 WHERE id = $1 RETURNING balance`,
		userID, amount).Scan(&balance)
	if err != nil {
		return 0, wrapNotFound(op, err)
	}
	return balance, nil
}

// AddPartnerBalance начисляет партнёрский доход и увеличивает total_earned.
func (s *Storage) AddPartnerBalance(ctx context.Context, userID, amount int64) error {
	const op = "storage.AddPartnerBalance"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET partner_balance = partner_balance + $2,
		                  total_earned = total_earned + GREATEST($2, 0)
		 WHERE id = $1`, userID, amount)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// SetBlacklist помещает пользователя в чёрный список или убирает из него.
func (s *Storage) SetBlacklist(ctx context.Context, userID int64, inBlacklist bool, reason string) error {
	const op = "storage.SetBlacklist"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET in_blacklist = $2, ban_reason = $3 WHERE id = $1`,
		userID, inBlacklist, reason)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// SetUserStatus записывает хранимый статус пользователя.
func (s *Storage) SetUserStatus(ctx context.Context, userID int64, status models.UserStatus) error {
	const op = "storage.SetUserStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET status = $2 WHERE id = $1`, userID, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// SetTrialUsed отмечает, что пробный период использован (или сбрасывает отметку).
func (s *Storage) SetTrialUsed(ctx context.Context, userID int64, used bool) error {
	const op = "storage.SetTrialUsed"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET trial_used = $2 WHERE id = $1`, userID, used)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// SetPartner задаёт партнёрский статус и ставку.
func (s *Storage) SetPartner(ctx context.Context, userID int64, isPartner bool, rate int) error {
	const op = "storage.SetPartner"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET is_partner = $2, partner_rate = $3 WHERE id = $1`,
		userID, isPartner, rate)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// IncrementReferralCount увеличивает счётчик приглашённых.
func (s *Storage) IncrementReferralCount(ctx context.Context, userID int64) error {
	const op = "storage.IncrementReferralCount"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET referral_count = referral_count + 1 WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(op, res)
}

// ListUserIDs возвращает ID пользователей, подходящих под фильтр, по возрастанию.
// Статус сравнивается с учётом чёрного списка.
func (s *Storage) ListUserIDs(ctx context.Context, filter models.TargetFilter) ([]int64, error) {
	const op = "storage.ListUserIDs"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var (
		conds []string
		args  []any
	)
	placeholders := func(n int) string {
		ph := make([]string, n)
		for i := range ph {
			ph[i] = fmt.Sprintf("$%d", len(args)-n+i+1)
		}
		return strings.Join(ph, ", ")
	}

	if len(filter.UserIDs) > 0 {
		for _, id := range filter.UserIDs {
			args = append(args, id)
		}
		conds = append(conds, "u.id IN ("+placeholders(len(filter.UserIDs))+")")
	}
	if len(filter.Statuses) > 0 {
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
		conds = append(conds,
			"(CASE WHEN u.in_blacklist THEN 'Banned' ELSE u.status END) IN ("+placeholders(len(filter.Statuses))+")")
	}
	if filter.SquadUUID != "" {
		args = append(args, filter.SquadUUID)
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM keys k WHERE k.user_id = u.id AND k.squad_uuid = $%d)", len(args)))
	}

	query := `SELECT u.id FROM users u`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY u.id"

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
