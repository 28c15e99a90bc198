package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

const transactionColumns = `id, user_id, amount, type, status, method, reason, account,
	related_operation_id, refund_of, hash, created_at`

func scanTransaction(row scanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var refundOf sql.NullInt64
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Type, &tx.Status, &tx.Method,
		&tx.Reason, &tx.Account, &tx.RelatedOperationID, &refundOf, &tx.Hash,
		&tx.CreatedAt); err != nil {
		return nil, err
	}
	if refundOf.Valid {
		tx.RefundOf = &refundOf.Int64
	}
	return tx, nil
}

// InsertTransaction добавляет запись в журнал и заполняет ID и CreatedAt.
func (s *Storage) InsertTransaction(ctx context.Context, tx *models.Transaction) (int64, error) {
	const op = "storage.InsertTransaction"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var refundOf sql.NullInt64
	if tx.RefundOf != nil {
		refundOf = sql.NullInt64{Int64: *tx.RefundOf, Valid: true}
	}
	err := s.conn(ctx).QueryRowContext(ctx,
		`INSERT INTO transactions (user_id, amount, type, status, method, reason, account,
		                           related_operation_id, refund_of, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		tx.UserID, tx.Amount, tx.Type, tx.Status, tx.Method, tx.Reason, tx.Account,
		tx.RelatedOperationID, refundOf, tx.Hash,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tx.ID, nil
}

// GetTransactionForUpdate читает запись журнала с блокировкой строки.
func (s *Storage) GetTransactionForUpdate(ctx context.Context, id int64) (*models.Transaction, error) {
	const op = "storage.GetTransactionForUpdate"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	tx, err := scanTransaction(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapNotFound(op, err)
	}
	return tx, nil
}

// RefundExists сообщает, есть ли уже возврат для транзакции id.
func (s *Storage) RefundExists(ctx context.Context, id int64) (bool, error) {
	const op = "storage.RefundExists"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE refund_of = $1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// ListTransactions возвращает журнал пользователя, новые записи первыми.
func (s *Storage) ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	const op = "storage.ListTransactions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		txs = append(txs, *tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return txs, nil
}

// SumTransactions возвращает сумму записей пользователя по счёту account.
func (s *Storage) SumTransactions(ctx context.Context, userID int64, account models.Account) (int64, error) {
	const op = "storage.SumTransactions"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var sum int64
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1 AND account = $2`,
		userID, account,
	).Scan(&sum); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return sum, nil
}

// InsertReferralReward фиксирует выплату за реферала. Возвращает false,
// если за этого реферала уже платили.
func (s *Storage) InsertReferralReward(ctx context.Context, referralID, referrerID, transactionID int64) (bool, error) {
	const op = "storage.InsertReferralReward"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO referral_rewards (referral_id, referrer_id, transaction_id)
		 VALUES ($1, $2, $3) ON CONFLICT (referral_id) DO NOTHING`,
		referralID, referrerID, transactionID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// ReferralRewarded сообщает, была ли выплата за реферала referralID.
func (s *Storage) ReferralRewarded(ctx context.Context, referralID int64) (bool, error) {
	const op = "storage.ReferralRewarded"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}
	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM referral_rewards WHERE referral_id = $1)`, referralID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}
