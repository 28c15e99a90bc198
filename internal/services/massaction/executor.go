// Package massaction применяет одно действие к выборке пользователей.
// Каждый пользователь обрабатывается и фиксируется отдельно, ошибка одного
// элемента не останавливает остальные.
package massaction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/metrics"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Targets выбирает пользователей по фильтру.
type Targets interface {
	ListUserIDs(ctx context.Context, filter models.TargetFilter) ([]int64, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Keys — операции с ключами пользователя.
type Keys interface {
	ListByUser(ctx context.Context, userID int64, actor models.Actor) ([]models.KeyView, error)
	Extend(ctx context.Context, keyID int64, days int, price int64, notify bool, actor models.Actor) (*models.Key, error)
	Reduce(ctx context.Context, keyID int64, days int, notify bool) (*models.Key, error)
	SetTrafficLimit(ctx context.Context, keyID, gb int64, notify bool) (*models.Key, error)
	SetDeviceLimit(ctx context.Context, keyID int64, devices int, notify bool) (*models.Key, error)
	Block(ctx context.Context, keyID int64, reason string, notify bool) (*models.Key, error)
	Unblock(ctx context.Context, keyID int64, notify bool) (*models.Key, error)
	Delete(ctx context.Context, keyID int64, notify bool, actor models.Actor) (*models.DeleteKeyResult, error)
}

// Ledger — изменение балансов.
type Ledger interface {
	ApplyDelta(ctx context.Context, d models.Delta) (*models.Transaction, error)
}

// Accounts — учётные флаги пользователя.
type Accounts interface {
	Ban(ctx context.Context, userID int64, reason string) error
	Unban(ctx context.Context, userID int64) error
	ResetTrial(ctx context.Context, userID int64) error
	SetPartner(ctx context.Context, userID int64, rate int) error
	RemovePartner(ctx context.Context, userID int64) error
}

// Notifier публикует уведомления.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// Executor выполняет массовые действия.
type Executor struct {
	targets  Targets
	keys     Keys
	ledger   Ledger
	accounts Accounts
	notifier Notifier
	validate *validator.Validate
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New создаёт Executor.
func New(targets Targets, keys Keys, ledger Ledger, accounts Accounts, notifier Notifier,
	m *metrics.Metrics, log *slog.Logger,
) *Executor {
	return &Executor{
		targets:  targets,
		keys:     keys,
		ledger:   ledger,
		accounts: accounts,
		notifier: notifier,
		validate: validator.New(),
		metrics:  m,
		log:      log,
	}
}

// Execute применяет action ко всем пользователям, выбранным filter.
// Отмена ctx останавливает обработку между элементами: уже обработанные
// элементы остаются в результате, Interrupted выставляется в true.
func (e *Executor) Execute(ctx context.Context, action models.MassAction, filter models.TargetFilter) (*models.MassActionResult, error) {
	const op = "massaction.Execute"
	if action == nil {
		return nil, fmt.Errorf("%s: nil action: %w", op, models.ErrInvalidArgument)
	}
	if err := e.validate.Struct(action); err != nil {
		return nil, fmt.Errorf("%s: %s: %v: %w", op, action.ActionType(), err, models.ErrInvalidArgument)
	}
	ids, err := e.targets.ListUserIDs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &models.MassActionResult{
		Action:    action.ActionType(),
		Succeeded: []int64{},
		Failed:    []models.ItemFailure{},
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		if err := e.apply(ctx, action, id); err != nil {
			res.Failed = append(res.Failed, models.ItemFailure{ID: id, Error: err.Error()})
			e.metrics.MassActionItems.WithLabelValues(string(res.Action), "error").Inc()
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		e.metrics.MassActionItems.WithLabelValues(string(res.Action), "ok").Inc()
	}

	e.log.Info("mass action finished",
		slog.String("op", op),
		slog.String("action", string(res.Action)),
		slog.Int("targets", len(ids)),
		slog.Int("succeeded", len(res.Succeeded)),
		slog.Int("failed", len(res.Failed)),
		slog.Bool("interrupted", res.Interrupted))
	return res, nil
}

func (e *Executor) apply(ctx context.Context, action models.MassAction, userID int64) error {
	switch a := action.(type) {
	case *models.AddBalanceAction:
		return e.balance(ctx, userID, a.Amount, models.ReasonAdminCredit, a.Notify)
	case *models.SubBalanceAction:
		return e.balance(ctx, userID, -a.Amount, models.ReasonAdminDebit, a.Notify)
	case *models.ExtendDaysAction:
		return e.eachKey(ctx, userID, func(id int64) error {
			_, err := e.keys.Extend(ctx, id, a.Days, 0, a.Notify, models.Admin())
			return err
		})
	case *models.ReduceDaysAction:
		return e.eachKey(ctx, userID, func(id int64) error {
			_, err := e.keys.Reduce(ctx, id, a.Days, a.Notify)
			return err
		})
	case *models.SetTrafficAction:
		return e.eachKey(ctx, userID, func(id int64) error {
			_, err := e.keys.SetTrafficLimit(ctx, id, a.GB, a.Notify)
			return err
		})
	case *models.SetDevicesAction:
		return e.eachKey(ctx, userID, func(id int64) error {
			_, err := e.keys.SetDeviceLimit(ctx, id, a.Devices, a.Notify)
			return err
		})
	case *models.BlockKeysAction:
		return e.eachKey(ctx, userID, func(id int64) error {
			_, err := e.keys.Block(ctx, id, a.Reason, a.Notify)
			return err
		})
	case *models.UnblockKeysAction:
		return e.eachKey(ctx, userID, func(id int64) error {
			_, err := e.keys.Unblock(ctx, id, a.Notify)
			return err
		})
	case *models.DeleteKeysAction:
		return e.eachKey(ctx, userID, func(id int64) error {
			_, err := e.keys.Delete(ctx, id, a.Notify, models.Admin())
			return err
		})
	case *models.BanUsersAction:
		return e.account(ctx, userID, a.Notify, "Доступ к сервису ограничен.", func() error {
			return e.accounts.Ban(ctx, userID, a.Reason)
		})
	case *models.UnbanUsersAction:
		return e.account(ctx, userID, a.Notify, "Ограничение доступа снято.", func() error {
			return e.accounts.Unban(ctx, userID)
		})
	case *models.ResetTrialAction:
		return e.account(ctx, userID, a.Notify, "Вам снова доступен пробный период.", func() error {
			return e.accounts.ResetTrial(ctx, userID)
		})
	case *models.SetPartnerAction:
		return e.account(ctx, userID, a.Notify, fmt.Sprintf("Вы стали партнёром, ставка %d%%.", a.Rate), func() error {
			return e.accounts.SetPartner(ctx, userID, a.Rate)
		})
	case *models.RemovePartnerAction:
		return e.account(ctx, userID, a.Notify, "Партнёрский статус снят.", func() error {
			return e.accounts.RemovePartner(ctx, userID)
		})
	case *models.NotifyAction:
		if _, err := e.targets.GetUser(ctx, userID); err != nil {
			return err
		}
		e.notify(ctx, userID, models.NotifyMessage, a.Text)
		return nil
	default:
		return fmt.Errorf("unsupported action %T: %w", action, models.ErrInvalidArgument)
	}
}

// eachKey применяет fn ко всем ключам пользователя. Первая ошибка
// прерывает обработку пользователя.
func (e *Executor) eachKey(ctx context.Context, userID int64, fn func(keyID int64) error) error {
	keys, err := e.keys.ListByUser(ctx, userID, models.Admin())
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err = fn(k.ID); err != nil {
			return fmt.Errorf("key %d: %w", k.ID, err)
		}
	}
	return nil
}

func (e *Executor) balance(ctx context.Context, userID, amount int64, reason models.TransactionReason, notify bool) error {
	tx, err := e.ledger.ApplyDelta(ctx, models.Delta{
		UserID:        userID,
		Amount:        amount,
		Reason:        reason,
		AllowNegative: true,
	})
	if err != nil {
		return err
	}
	if notify {
		verb := "зачислено"
		if amount < 0 {
			verb = "списано"
			amount = -amount
		}
		e.notify(ctx, userID, models.NotifyBalance,
			fmt.Sprintf("На баланс %s %s ₽ (операция %d).", verb, models.FormatRubles(amount), tx.ID))
	}
	return nil
}

func (e *Executor) account(ctx context.Context, userID int64, notify bool, text string, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	if notify {
		e.notify(ctx, userID, models.NotifyAccount, text)
	}
	return nil
}

func (e *Executor) notify(ctx context.Context, userID int64, kind models.NotificationKind, text string) {
	u, err := e.targets.GetUser(ctx, userID)
	if err != nil {
		e.log.Warn("notification skipped", slog.Int64("user_id", userID), sl.Err(err))
		return
	}
	e.notifier.Notify(ctx, models.Notification{UserID: u.ID, TelegramID: u.TelegramID, Kind: kind, Text: text})
}
