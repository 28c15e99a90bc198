// Package notifier публикует намерения уведомить пользователя в RabbitMQ.
package notifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
	"github.com/magabrotheeeer/squad-orchestrator/internal/rabbitmq"
)

// Notifier отправляет уведомления в exchange уведомлений.
// Ошибки публикации только логируются: результат операции от доставки не зависит.
type Notifier struct {
	mu  sync.Mutex
	ch  rabbitmq.Publisher
	log *slog.Logger
}

// New создаёт Notifier поверх канала ch.
func New(ch rabbitmq.Publisher, log *slog.Logger) *Notifier {
	return &Notifier{ch: ch, log: log}
}

// Notify публикует уведомление n.
func (n *Notifier) Notify(ctx context.Context, msg models.Notification) {
	log := n.log.With(
		slog.Int64("user_id", msg.UserID),
		slog.String("kind", string(msg.Kind)),
	)
	if msg.TelegramID == 0 || msg.Text == "" {
		log.Warn("skip notification without recipient or text")
		return
	}
	if err := ctx.Err(); err != nil {
		log.Warn("skip notification, context done", sl.Err(err))
		return
	}

	n.mu.Lock()
	err := rabbitmq.PublishMessage(n.ch, rabbitmq.ExchangeName, rabbitmq.UserNotifyRoutingKey, msg)
	n.mu.Unlock()
	if err != nil {
		log.Error("failed to publish notification", sl.Err(err))
		return
	}
	log.Debug("notification published")
}
