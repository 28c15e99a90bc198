// Package locker реализует распределённую блокировку пользователя поверх Redis.
//
// Все изменения ключей пользователя, которые ходят во внешнюю панель, выполняются
// под этой блокировкой, поэтому два параллельных запроса одного пользователя
// не могут одновременно назначить сквад или списать баланс.
package locker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
)

// ErrBusy возвращается, если блокировку не удалось взять за отведённые попытки.
var ErrBusy = errors.New("user is locked by another operation")

const (
	defaultExpiry = 30 * time.Second
	defaultTries  = 20
	retryDelay    = 100 * time.Millisecond
)

// Locker выдаёт мьютексы пользователей.
type Locker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	log    *slog.Logger
}

// New создаёт Locker поверх клиента go-redis.
func New(rdb *redis.Client, expiry time.Duration, log *slog.Logger) *Locker {
	if expiry <= 0 {
		expiry = defaultExpiry
	}
	return &Locker{
		rs:     redsync.New(goredis.NewPool(rdb)),
		expiry: expiry,
		log:    log,
	}
}

func userLockKey(userID int64) string {
	return fmt.Sprintf("lock:user:%d", userID)
}

// WithUser выполняет fn, удерживая блокировку пользователя userID.
// Ошибка снятия блокировки только логируется: ключ всё равно истечёт по TTL.
func (l *Locker) WithUser(ctx context.Context, userID int64, fn func(ctx context.Context) error) error {
	const op = "locker.WithUser"
	mutex := l.rs.NewMutex(
		userLockKey(userID),
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(defaultTries),
		redsync.WithRetryDelay(retryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return fmt.Errorf("%s: user %d: %w", op, userID, ErrBusy)
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			l.log.Warn("failed to release user lock",
				slog.String("op", op),
				slog.Int64("user_id", userID),
				sl.Err(err))
		}
	}()
	return fn(ctx)
}
