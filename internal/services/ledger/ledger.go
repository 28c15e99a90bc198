// Package ledger ведёт балансы пользователей. Каждое изменение баланса
// пишется в журнал транзакций в той же транзакции БД, что и само изменение.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/metrics"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// MethodInternal — способ проведения для операций внутри сервиса.
const MethodInternal = "internal"

// Repository описывает хранилище балансов и журнала.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserForUpdate(ctx context.Context, id int64) (*models.User, error)
	AddBalance(ctx context.Context, userID, amount int64) (int64, error)
	AddPartnerBalance(ctx context.Context, userID, amount int64) error
	InsertTransaction(ctx context.Context, tx *models.Transaction) (int64, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (*models.Transaction, error)
	RefundExists(ctx context.Context, id int64) (bool, error)
	ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error)
	SumTransactions(ctx context.Context, userID int64, account models.Account) (int64, error)
	InsertReferralReward(ctx context.Context, referralID, referrerID, transactionID int64) (bool, error)
	ReferralRewarded(ctx context.Context, referralID int64) (bool, error)
}

// Reconciliation — сверка сохранённого баланса с суммой журнала.
type Reconciliation struct {
	UserID     int64 `json:"user_id"`
	Balance    int64 `json:"balance"`
	LedgerSum  int64 `json:"ledger_sum"`
	Consistent bool  `json:"consistent"`
}

// Ledger — сервис балансов.
type Ledger struct {
	repo           Repository
	referralReward int64
	metrics        *metrics.Metrics
	log            *slog.Logger
}

// New создаёт Ledger. referralReward задаёт вознаграждение пригласившему в копейках.
func New(repo Repository, referralReward int64, m *metrics.Metrics, log *slog.Logger) *Ledger {
	return &Ledger{repo: repo, referralReward: referralReward, metrics: m, log: log}
}

// ApplyDelta меняет баланс пользователя на d.Amount и записывает транзакцию.
// Без d.AllowNegative списание, уводящее баланс ниже нуля, отклоняется
// с ErrInsufficientBalance, и ничего не записывается.
// Если ctx уже несёт транзакцию БД, операция выполняется в ней.
func (l *Ledger) ApplyDelta(ctx context.Context, d models.Delta) (*models.Transaction, error) {
	const op = "ledger.ApplyDelta"
	if d.Amount == 0 {
		return nil, fmt.Errorf("%s: zero amount: %w", op, models.ErrInvalidArgument)
	}
	if d.Reason == "" {
		return nil, fmt.Errorf("%s: empty reason: %w", op, models.ErrInvalidArgument)
	}

	var tx *models.Transaction
	err := l.repo.InTx(ctx, func(ctx context.Context) error {
		user, err := l.repo.GetUserForUpdate(ctx, d.UserID)
		if err != nil {
			return err
		}
		if !d.AllowNegative && d.Amount < 0 && user.Balance+d.Amount < 0 {
			return fmt.Errorf("balance %d, delta %d: %w", user.Balance, d.Amount, models.ErrInsufficientBalance)
		}
		if _, err = l.repo.AddBalance(ctx, d.UserID, d.Amount); err != nil {
			return err
		}
		tx, err = l.record(ctx, d.UserID, d.Amount, d.Reason, models.AccountBalance, d.Method, d.RelatedOperationID, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	l.metrics.LedgerTransaction.WithLabelValues(string(d.Reason)).Inc()
	return tx, nil
}

func (l *Ledger) record(ctx context.Context, userID, amount int64, reason models.TransactionReason,
	account models.Account, method, related string, refundOf *int64,
) (*models.Transaction, error) {
	if method == "" {
		method = MethodInternal
	}
	tx := &models.Transaction{
		UserID:             userID,
		Amount:             amount,
		Type:               models.TypeForAmount(amount),
		Status:             models.TransactionStatusSuccess,
		Method:             method,
		Reason:             reason,
		Account:            account,
		RelatedOperationID: related,
		RefundOf:           refundOf,
		Hash:               uuid.NewString(),
	}
	id, err := l.repo.InsertTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	tx.ID = id
	return tx, nil
}

// Refund создаёт обратную транзакцию к transactionID на том же счёте.
// Повторный возврат даёт ErrAlreadyUsed, возврат возврата даёт ErrInvalidArgument.
// Возврат может увести баланс в минус: это административная операция.
func (l *Ledger) Refund(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	const op = "ledger.Refund"
	var refund *models.Transaction
	err := l.repo.InTx(ctx, func(ctx context.Context) error {
		orig, err := l.repo.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if orig.RefundOf != nil {
			return fmt.Errorf("transaction %d is a refund: %w", transactionID, models.ErrInvalidArgument)
		}
		exists, err := l.repo.RefundExists(ctx, transactionID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("transaction %d: %w", transactionID, models.ErrAlreadyUsed)
		}
		if _, err = l.repo.GetUserForUpdate(ctx, orig.UserID); err != nil {
			return err
		}

		amount := -orig.Amount
		switch orig.Account {
		case models.AccountPartner:
			err = l.repo.AddPartnerBalance(ctx, orig.UserID, amount)
		default:
			_, err = l.repo.AddBalance(ctx, orig.UserID, amount)
		}
		if err != nil {
			return err
		}
		id := orig.ID
		refund, err = l.record(ctx, orig.UserID, amount, models.ReasonRefund, orig.Account,
			orig.Method, orig.RelatedOperationID, &id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	l.metrics.LedgerTransaction.WithLabelValues(string(models.ReasonRefund)).Inc()
	l.log.Info("transaction refunded",
		slog.String("op", op),
		slog.Int64("transaction_id", transactionID),
		slog.Int64("refund_id", refund.ID))
	return refund, nil
}

// History возвращает транзакции пользователя, новые первыми.
func (l *Ledger) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	const op = "ledger.History"
	if _, err := l.repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	txs, err := l.repo.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return txs, nil
}

// Reconcile сверяет баланс пользователя с суммой его транзакций по основному счёту.
func (l *Ledger) Reconcile(ctx context.Context, userID int64) (*Reconciliation, error) {
	const op = "ledger.Reconcile"
	var rec *Reconciliation
	err := l.repo.InTx(ctx, func(ctx context.Context) error {
		user, err := l.repo.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := l.repo.SumTransactions(ctx, userID, models.AccountBalance)
		if err != nil {
			return err
		}
		rec = &Reconciliation{
			UserID:     userID,
			Balance:    user.Balance,
			LedgerSum:  sum,
			Consistent: user.Balance == sum,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !rec.Consistent {
		l.log.Warn("balance drift detected",
			slog.String("op", op),
			slog.Int64("user_id", userID),
			slog.Int64("balance", rec.Balance),
			slog.Int64("ledger_sum", rec.LedgerSum))
	}
	return rec, nil
}

var errAlreadyRewarded = errors.New("referral already rewarded")

// CreditReferral начисляет пригласившему вознаграждение за referralID
// на партнёрский счёт. Начисление за одного приглашённого выполняется
// не более одного раза. Если пригласившего нет или награда уже выдана,
// возвращает nil без ошибки.
func (l *Ledger) CreditReferral(ctx context.Context, referralID int64) (*models.Transaction, error) {
	const op = "ledger.CreditReferral"
	if l.referralReward <= 0 {
		return nil, nil
	}
	var tx *models.Transaction
	err := l.repo.InTx(ctx, func(ctx context.Context) error {
		referral, err := l.repo.GetUser(ctx, referralID)
		if err != nil {
			return err
		}
		if referral.ReferredBy == nil {
			return errAlreadyRewarded
		}
		rewarded, err := l.repo.ReferralRewarded(ctx, referralID)
		if err != nil {
			return err
		}
		if rewarded {
			return errAlreadyRewarded
		}
		referrerID := *referral.ReferredBy
		if _, err = l.repo.GetUserForUpdate(ctx, referrerID); err != nil {
			return err
		}
		if err = l.repo.AddPartnerBalance(ctx, referrerID, l.referralReward); err != nil {
			return err
		}
		tx, err = l.record(ctx, referrerID, l.referralReward, models.ReasonReferralIncome,
			models.AccountPartner, MethodInternal, fmt.Sprintf("referral:%d", referralID), nil)
		if err != nil {
			return err
		}
		inserted, err := l.repo.InsertReferralReward(ctx, referralID, referrerID, tx.ID)
		if err != nil {
			return err
		}
		if !inserted {
			return errAlreadyRewarded
		}
		return nil
	})
	if errors.Is(err, errAlreadyRewarded) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	l.metrics.LedgerTransaction.WithLabelValues(string(models.ReasonReferralIncome)).Inc()
	l.log.Info("referral rewarded",
		slog.String("op", op),
		slog.Int64("referral_id", referralID),
		slog.Int64("referrer_id", tx.UserID),
		slog.Int64("amount", tx.Amount))
	return tx, nil
}
