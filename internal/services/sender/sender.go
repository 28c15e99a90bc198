// Package sender доставляет уведомления из очереди пользователям в Telegram.
package sender

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// Bot — часть *tgbotapi.BotAPI, нужная для отправки.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SenderService разбирает сообщения очереди и отправляет их ботом.
type SenderService struct {
	bot Bot
	log *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(bot Bot, log *slog.Logger) *SenderService {
	return &SenderService{
		bot: bot,
		log: log,
	}
}

// SendNotification обрабатывает одно сообщение очереди.
// Возвращённая ошибка означает, что сообщение нужно вернуть в очередь;
// битые сообщения и пользователи, заблокировавшие бота, отбрасываются.
func (s *SenderService) SendNotification(body []byte) error {
	const op = "sender.SendNotification"

	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal message body, dropping", sl.Err(err))
		return nil
	}
	log := s.log.With(
		slog.Int64("user_id", n.UserID),
		slog.String("kind", string(n.Kind)),
	)
	if n.TelegramID == 0 || n.Text == "" {
		log.Warn("notification without recipient or text, dropping")
		return nil
	}

	msg := tgbotapi.NewMessage(n.TelegramID, n.Text)
	msg.DisableWebPagePreview = true
	if _, err := s.bot.Send(msg); err != nil {
		if permanent(err) {
			log.Warn("telegram rejected message, dropping", sl.Err(err))
			return nil
		}
		log.Error("failed to send telegram message", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("notification delivered")
	return nil
}

// permanent сообщает, что повтор отправки не поможет: бот заблокирован,
// чат не найден или запрос некорректен.
func permanent(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusForbidden:
		return true
	}
	return false
}
