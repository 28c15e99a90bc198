// Package scheduler фиксирует истечение ключей и рассылает напоминания о нём.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// KeyRepository — выборки ключей, нужные планировщику.
type KeyRepository interface {
	MarkExpiredKeys(ctx context.Context, now time.Time) (int64, error)
	ListExpiringKeys(ctx context.Context, from, to time.Time) ([]models.KeyInfo, error)
}

// Notifier публикует уведомления пользователям.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// SchedulerService периодически выполняет Tick.
type SchedulerService struct {
	repo         KeyRepository
	notifier     Notifier
	interval     time.Duration
	remindBefore time.Duration
	log          *slog.Logger
	now          func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
// Напоминание уходит за remindBefore до истечения ключа.
func NewSchedulerService(repo KeyRepository, notifier Notifier, interval, remindBefore time.Duration, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:         repo,
		notifier:     notifier,
		interval:     interval,
		remindBefore: remindBefore,
		log:          log,
		now:          time.Now,
	}
}

// Run выполняет Tick сразу и затем каждые interval, пока ctx не отменён.
func (s *SchedulerService) Run(ctx context.Context) {
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick переводит истёкшие ключи в Expired и рассылает напоминания.
// Ошибки только логируются, следующий запуск повторит работу.
func (s *SchedulerService) Tick(ctx context.Context) {
	now := s.now()
	if _, err := s.MarkExpired(ctx, now); err != nil {
		s.log.Error("failed to mark expired keys", sl.Err(err))
	}
	if _, err := s.RemindExpiring(ctx, now); err != nil {
		s.log.Error("failed to send expiry reminders", sl.Err(err))
	}
}

// MarkExpired сохраняет переход Active -> Expired для ключей с истёкшим сроком.
func (s *SchedulerService) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "scheduler.MarkExpired"
	n, err := s.repo.MarkExpiredKeys(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		s.log.Info("keys expired", slog.Int64("count", n))
	}
	return n, nil
}

// RemindExpiring уведомляет владельцев ключей, истекающих через remindBefore.
// Окно шириной в interval сдвигается вместе с запусками, поэтому каждый ключ
// попадает в напоминание один раз.
func (s *SchedulerService) RemindExpiring(ctx context.Context, now time.Time) (int, error) {
	const op = "scheduler.RemindExpiring"
	from := now.Add(s.remindBefore)
	infos, err := s.repo.ListExpiringKeys(ctx, from, from.Add(s.interval))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(infos) == 0 {
		s.log.Debug("no expiring keys found")
		return 0, nil
	}

	s.log.Info("found expiring keys", slog.Int("count", len(infos)))
	for _, ki := range infos {
		s.notifier.Notify(ctx, models.Notification{
			UserID:     ki.UserID,
			TelegramID: ki.TelegramID,
			Kind:       models.NotifyKeyExpiring,
			Text: fmt.Sprintf("Ключ #%d истекает %s (UTC). Продлите его, чтобы не потерять доступ.",
				ki.KeyID, ki.ExpiryDate.UTC().Format("02.01.2006 15:04")),
		})
	}
	return len(infos), nil
}
