package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestNotifier_Notify(t *testing.T) {
	n := models.Notification{UserID: 7, TelegramID: 700, Kind: models.NotifyKeyCreated, Text: "ключ готов"}

	t.Run("publishes json to user queue", func(t *testing.T) {
		ch := new(MockChannel)
		ch.On("Publish", "notifications", "user.notify", false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
			var got models.Notification
			if err := json.Unmarshal(p.Body, &got); err != nil {
				return false
			}
			return got == n && p.DeliveryMode == amqp.Persistent
		})).Return(nil).Once()

		New(ch, newNoopLogger()).Notify(context.Background(), n)
		ch.AssertExpectations(t)
	})

	t.Run("publish error is swallowed", func(t *testing.T) {
		ch := new(MockChannel)
		ch.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("channel closed")).Once()

		require.NotPanics(t, func() {
			New(ch, newNoopLogger()).Notify(context.Background(), n)
		})
		ch.AssertExpectations(t)
	})

	t.Run("no recipient", func(t *testing.T) {
		ch := new(MockChannel)
		New(ch, newNoopLogger()).Notify(context.Background(), models.Notification{UserID: 1, Text: "x"})
		ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("canceled context", func(t *testing.T) {
		ch := new(MockChannel)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		New(ch, newNoopLogger()).Notify(ctx, n)
		ch.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
