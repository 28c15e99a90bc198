// Package lifecycle управляет жизненным циклом VPN-ключей: выдача, продление,
// сокращение срока, лимиты, ручная блокировка, перенос между сквадами и удаление.
//
// Операции с панелью выполняются под распределённой блокировкой пользователя,
// изменения в БД идут одной транзакцией. Если панель и БД разошлись после
// частичного сбоя, выполняется компенсация.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/squad-orchestrator/internal/cache"
	"github.com/magabrotheeeer/squad-orchestrator/internal/config"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/sl"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
	"github.com/magabrotheeeer/squad-orchestrator/internal/remnawave"
)

// Repository описывает хранилище ключей и пользователей.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserForUpdate(ctx context.Context, id int64) (*models.User, error)
	SetTrialUsed(ctx context.Context, userID int64, used bool) error
	SetUserStatus(ctx context.Context, userID int64, status models.UserStatus) error
	CreateKey(ctx context.Context, k *models.Key) (int64, error)
	GetKey(ctx context.Context, id int64) (*models.Key, error)
	GetKeyForUpdate(ctx context.Context, id int64) (*models.Key, error)
	ListKeysByUser(ctx context.Context, userID int64) ([]models.Key, error)
	UpdateKey(ctx context.Context, k *models.Key) error
	DeleteKey(ctx context.Context, id int64) error
}

// Registry выдаёт и освобождает места в сквадах.
type Registry interface {
	Assign(ctx context.Context, t models.SubscriptionType, preferred []string) (string, error)
	RecordRelease(ctx context.Context, uuid string) error
	ReleaseInTx(ctx context.Context, uuid string) error
	InvalidateList(ctx context.Context)
	Preferred(ctx context.Context, t models.SubscriptionType) ([]string, error)
}

// Ledger проводит списания за ключи.
type Ledger interface {
	ApplyDelta(ctx context.Context, d models.Delta) (*models.Transaction, error)
	CreditReferral(ctx context.Context, referralID int64) (*models.Transaction, error)
}

// Panel — внешняя VPN-панель.
type Panel interface {
	CreateKey(ctx context.Context, p models.PanelKeyParams) (*models.PanelKey, error)
	MutateKey(ctx context.Context, keyUUID string, upd models.PanelKeyUpdate) error
	DeleteKey(ctx context.Context, keyUUID string) error
}

// Locker даёт взаимное исключение операций одного пользователя.
type Locker interface {
	WithUser(ctx context.Context, userID int64, fn func(ctx context.Context) error) error
}

// Cache кэширует карточки ключей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Notifier публикует намерение уведомить пользователя. Ошибки доставки
// обрабатывает сам Notifier.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// Deps — зависимости Manager.
type Deps struct {
	Repo     Repository
	Registry Registry
	Ledger   Ledger
	Panel    Panel
	Locker   Locker
	Cache    Cache
	Notifier Notifier
	Pricing  config.Pricing
	Log      *slog.Logger
	// Now подменяется в тестах. По умолчанию time.Now.
	Now func() time.Time
}

// Manager — менеджер жизненного цикла ключей.
type Manager struct {
	repo     Repository
	registry Registry
	ledger   Ledger
	panel    Panel
	locker   Locker
	cache    Cache
	notifier Notifier
	pricing  config.Pricing
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Manager.
func New(d Deps) *Manager {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		repo:     d.Repo,
		registry: d.Registry,
		ledger:   d.Ledger,
		panel:    d.Panel,
		locker:   d.Locker,
		cache:    d.Cache,
		notifier: d.Notifier,
		pricing:  d.Pricing,
		log:      d.Log,
		now:      now,
	}
}

// panelState переводит ключ в полное состояние пользователя панели.
// Панель получает состояние целиком, поэтому откатом служит повторная отправка
// состояния до изменения.
func panelState(k *models.Key) models.PanelKeyUpdate {
	expire := k.ExpiryDate
	traffic := k.TrafficLimit
	devices := k.DevicesLimit
	disabled := k.Blocked
	upd := models.PanelKeyUpdate{
		ExpireAt:          &expire,
		TrafficLimitBytes: &traffic,
		DeviceLimit:       &devices,
		Disabled:          &disabled,
	}
	if sq := k.Squad(); sq != "" {
		upd.Squads = []string{sq}
	}
	return upd
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func relatedKey(keyID int64) string {
	return fmt.Sprintf("key:%d", keyID)
}

// Create выдаёт новый ключ.
//
// Порядок: место в скваде, пользователь панели, затем одной транзакцией
// запись ключа, списание Price и отметка пробного периода. Ошибка панели
// освобождает место и ничего не сохраняет. Ошибка БД после создания
// пользователя панели удаляет его и освобождает место.
func (m *Manager) Create(ctx context.Context, p models.CreateKeyParams, actor models.Actor) (*models.Key, error) {
	const op = "lifecycle.Create"
	if !actor.CanAccess(p.UserID) {
		return nil, fmt.Errorf("%s: user %d: %w", op, p.UserID, models.ErrNotFound)
	}
	days, err := m.normalizeCreate(&p, actor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var key *models.Key
	err = m.locker.WithUser(ctx, p.UserID, func(ctx context.Context) error {
		var err error
		key, err = m.create(ctx, p, days, actor)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if p.Price > 0 {
		if _, err = m.ledger.CreditReferral(ctx, p.UserID); err != nil {
			m.log.Warn("referral credit failed",
				slog.String("op", op), slog.Int64("user_id", p.UserID), sl.Err(err))
		}
	}
	m.log.Info("key created",
		slog.String("op", op),
		slog.Int64("key_id", key.ID),
		slog.Int64("user_id", key.UserID),
		slog.String("squad", key.Squad()),
		slog.Bool("trial", key.IsTrial))
	if p.Notify {
		m.notifyUser(ctx, key.UserID, models.NotifyKeyCreated,
			fmt.Sprintf("Ключ #%d выдан до %s.", key.ID, key.ExpiryDate.Format(time.DateOnly)))
	}
	return key, nil
}

// normalizeCreate проверяет параметры и подставляет значения по умолчанию.
// Возвращает срок в днях.
func (m *Manager) normalizeCreate(p *models.CreateKeyParams, actor models.Actor) (int, error) {
	if p.Type == "" {
		p.Type = models.SubscriptionVPN
		if p.IsTrial {
			p.Type = models.SubscriptionTrial
		}
	}
	if !p.Type.Valid() {
		return 0, fmt.Errorf("unknown type %q: %w", p.Type, models.ErrInvalidArgument)
	}
	if p.Price < 0 || p.TrafficLimitGB < 0 || p.DevicesLimit < 0 {
		return 0, fmt.Errorf("negative price or limit: %w", models.ErrInvalidArgument)
	}

	if p.IsTrial {
		if p.IsForever {
			return 0, fmt.Errorf("trial key cannot be forever: %w", models.ErrInvalidArgument)
		}
		if p.Days == 0 {
			p.Days = m.pricing.TrialDays
		}
		if p.TrafficLimitGB == 0 {
			p.TrafficLimitGB = m.pricing.TrialTrafficGB
		}
		if !actor.IsAdmin() {
			p.Price = 0
		}
	}

	if p.IsForever {
		if !actor.IsAdmin() {
			return 0, fmt.Errorf("forever keys are issued by admins only: %w", models.ErrInvalidArgument)
		}
		return models.ForeverDays, nil
	}
	if p.Days <= 0 {
		return 0, fmt.Errorf("days must be positive: %w", models.ErrInvalidArgument)
	}
	if !actor.IsAdmin() && !p.IsTrial && p.Price < int64(p.Days)*m.pricing.MinDayPrice {
		return 0, fmt.Errorf("price %d is below %d per day: %w", p.Price, m.pricing.MinDayPrice, models.ErrInvalidArgument)
	}
	return p.Days, nil
}

func (m *Manager) create(ctx context.Context, p models.CreateKeyParams, days int, actor models.Actor) (*models.Key, error) {
	user, err := m.repo.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && user.InBlacklist {
		return nil, fmt.Errorf("user %d: %w", user.ID, models.ErrBlacklisted)
	}
	if p.IsTrial && user.TrialUsed {
		return nil, fmt.Errorf("trial for user %d: %w", user.ID, models.ErrAlreadyUsed)
	}
	if p.Price > 0 && user.Balance < p.Price {
		return nil, fmt.Errorf("balance %d, price %d: %w", user.Balance, p.Price, models.ErrInsufficientBalance)
	}

	preferred := p.SquadPreferences
	if len(preferred) == 0 {
		if preferred, err = m.registry.Preferred(ctx, p.Type); err != nil {
			return nil, err
		}
	}
	squad, err := m.registry.Assign(ctx, p.Type, preferred)
	if err != nil {
		return nil, err
	}

	expiry := m.now().AddDate(0, 0, days)
	pk, err := m.panel.CreateKey(ctx, models.PanelKeyParams{
		Username:          remnawave.Username(user.Username, user.TelegramID),
		TelegramID:        user.TelegramID,
		ExpireAt:          expiry,
		TrafficLimitBytes: p.TrafficLimitGB * models.BytesInGB,
		DeviceLimit:       p.DevicesLimit,
		Squads:            []string{squad},
	})
	if err != nil {
		m.releaseSlot(ctx, squad)
		return nil, err
	}

	key := &models.Key{
		UserID:          user.ID,
		ExternalUUID:    pk.UUID,
		SubscriptionURL: pk.SubscriptionURL,
		Status:          models.KeyStatusActive,
		ExpiryDate:      expiry,
		TrafficLimit:    p.TrafficLimitGB * models.BytesInGB,
		DevicesLimit:    p.DevicesLimit,
		SquadUUID:       &squad,
		Type:            p.Type,
		IsTrial:         p.IsTrial,
		IsForever:       p.IsForever,
	}
	err = m.repo.InTx(ctx, func(ctx context.Context) error {
		u, err := m.repo.GetUserForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		if p.IsTrial && u.TrialUsed {
			return fmt.Errorf("trial for user %d: %w", u.ID, models.ErrAlreadyUsed)
		}
		if _, err = m.repo.CreateKey(ctx, key); err != nil {
			return err
		}
		if p.Price > 0 {
			if _, err = m.ledger.ApplyDelta(ctx, models.Delta{
				UserID:             u.ID,
				Amount:             -p.Price,
				Reason:             models.ReasonKeyPurchase,
				RelatedOperationID: relatedKey(key.ID),
			}); err != nil {
				return err
			}
		}
		if p.IsTrial {
			if err = m.repo.SetTrialUsed(ctx, u.ID, true); err != nil {
				return err
			}
			if u.Status != models.UserStatusActive {
				return m.repo.SetUserStatus(ctx, u.ID, models.UserStatusTrial)
			}
			return nil
		}
		if u.Status != models.UserStatusActive {
			return m.repo.SetUserStatus(ctx, u.ID, models.UserStatusActive)
		}
		return nil
	})
	if err != nil {
		m.compensateCreate(ctx, squad, pk.UUID)
		return nil, err
	}
	return key, nil
}

func (m *Manager) compensateCreate(ctx context.Context, squad, externalUUID string) {
	const op = "lifecycle.compensateCreate"
	ctx = context.WithoutCancel(ctx)
	if err := m.panel.DeleteKey(ctx, externalUUID); err != nil {
		m.log.Error("orphaned panel key after failed create",
			slog.String("op", op), slog.String("external_uuid", externalUUID), sl.Err(err))
	}
	m.releaseSlot(ctx, squad)
}

func (m *Manager) releaseSlot(ctx context.Context, squad string) {
	const op = "lifecycle.releaseSlot"
	if err := m.registry.RecordRelease(context.WithoutCancel(ctx), squad); err != nil {
		m.log.Error("failed to release squad slot",
			slog.String("op", op), slog.String("squad", squad), sl.Err(err))
	}
}

// accessibleKey читает ключ и проверяет, что actor может с ним работать.
// Чужой ключ для пользователя неотличим от несуществующего.
func (m *Manager) accessibleKey(ctx context.Context, keyID int64, actor models.Actor) (*models.Key, error) {
	k, err := m.repo.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(k.UserID) {
		return nil, fmt.Errorf("key %d: %w", keyID, models.ErrNotFound)
	}
	return k, nil
}

// mutate применяет fn к ключу под блокировкой пользователя в транзакции БД
// и отправляет новое состояние в панель до фиксации. Ошибка панели откатывает
// транзакцию. Если панель уже изменена, а фиксация не удалась, в панель
// возвращается прежнее состояние.
func (m *Manager) mutate(ctx context.Context, keyID int64, actor models.Actor,
	fn func(ctx context.Context, user *models.User, k *models.Key) error,
) (*models.Key, error) {
	k, err := m.accessibleKey(ctx, keyID, actor)
	if err != nil {
		return nil, err
	}

	var updated *models.Key
	err = m.locker.WithUser(ctx, k.UserID, func(ctx context.Context) error {
		var before *models.Key
		panelMutated := false
		err := m.repo.InTx(ctx, func(ctx context.Context) error {
			user, err := m.repo.GetUser(ctx, k.UserID)
			if err != nil {
				return err
			}
			key, err := m.repo.GetKeyForUpdate(ctx, keyID)
			if err != nil {
				return err
			}
			prev := *key
			before = &prev

			if err = fn(ctx, user, key); err != nil {
				return err
			}
			key.Status = key.EffectiveStatus(m.now())
			if err = m.repo.UpdateKey(ctx, key); err != nil {
				return err
			}
			if err = m.panel.MutateKey(ctx, key.ExternalUUID, panelState(key)); err != nil {
				return err
			}
			panelMutated = true
			updated = key
			return nil
		})
		if err != nil && panelMutated {
			m.revertPanel(ctx, before)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	m.invalidateKey(ctx, keyID)
	return updated, nil
}

func (m *Manager) revertPanel(ctx context.Context, before *models.Key) {
	const op = "lifecycle.revertPanel"
	if err := m.panel.MutateKey(context.WithoutCancel(ctx), before.ExternalUUID, panelState(before)); err != nil {
		m.log.Error("panel state diverged from database",
			slog.String("op", op), slog.Int64("key_id", before.ID), sl.Err(err))
	}
}

func (m *Manager) invalidateKey(ctx context.Context, keyID int64) {
	if err := m.cache.Invalidate(ctx, cache.KeyCacheKey(keyID)); err != nil {
		m.log.Warn("key cache invalidate failed", slog.Int64("key_id", keyID), sl.Err(err))
	}
}

// Extend продлевает ключ на days дней, списывая price. Новый срок
// отсчитывается от max(сейчас, текущий срок). При нехватке баланса
// ничего не меняется.
func (m *Manager) Extend(ctx context.Context, keyID int64, days int, price int64, notify bool, actor models.Actor) (*models.Key, error) {
	const op = "lifecycle.Extend"
	if days <= 0 || price < 0 {
		return nil, fmt.Errorf("%s: days must be positive and price non-negative: %w", op, models.ErrInvalidArgument)
	}
	if !actor.IsAdmin() && price < int64(days)*m.pricing.MinDayPrice {
		return nil, fmt.Errorf("%s: price %d is below %d per day: %w", op, price, m.pricing.MinDayPrice, models.ErrInvalidArgument)
	}

	k, err := m.mutate(ctx, keyID, actor, func(ctx context.Context, user *models.User, k *models.Key) error {
		if !actor.IsAdmin() && user.InBlacklist {
			return fmt.Errorf("user %d: %w", user.ID, models.ErrBlacklisted)
		}
		if price > 0 {
			if _, err := m.ledger.ApplyDelta(ctx, models.Delta{
				UserID:             user.ID,
				Amount:             -price,
				Reason:             models.ReasonKeyExtend,
				RelatedOperationID: relatedKey(k.ID),
			}); err != nil {
				return err
			}
		}
		k.ExpiryDate = maxTime(m.now(), k.ExpiryDate).AddDate(0, 0, days)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.log.Info("key extended",
		slog.String("op", op), slog.Int64("key_id", k.ID), slog.Int("days", days), slog.Int64("price", price))
	if notify {
		m.notifyUser(ctx, k.UserID, models.NotifyKeyExtended,
			fmt.Sprintf("Ключ #%d продлён на %d дн. до %s.", k.ID, days, k.ExpiryDate.Format(time.DateOnly)))
	}
	return k, nil
}

// Reduce сокращает срок ключа на days дней, но не раньше текущего момента.
func (m *Manager) Reduce(ctx context.Context, keyID int64, days int, notify bool) (*models.Key, error) {
	const op = "lifecycle.Reduce"
	if days <= 0 {
		return nil, fmt.Errorf("%s: days must be positive: %w", op, models.ErrInvalidArgument)
	}
	k, err := m.mutate(ctx, keyID, models.Admin(), func(_ context.Context, _ *models.User, k *models.Key) error {
		k.ExpiryDate = maxTime(m.now(), k.ExpiryDate.AddDate(0, 0, -days))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.log.Info("key reduced", slog.String("op", op), slog.Int64("key_id", k.ID), slog.Int("days", days))
	if notify {
		m.notifyUser(ctx, k.UserID, models.NotifyKeyReduced,
			fmt.Sprintf("Срок ключа #%d сокращён до %s.", k.ID, k.ExpiryDate.Format(time.DateOnly)))
	}
	return k, nil
}

// SetTrafficLimit задаёт лимит трафика в гигабайтах. 0 снимает лимит.
func (m *Manager) SetTrafficLimit(ctx context.Context, keyID, gb int64, notify bool) (*models.Key, error) {
	const op = "lifecycle.SetTrafficLimit"
	if gb < 0 {
		return nil, fmt.Errorf("%s: negative traffic limit: %w", op, models.ErrInvalidArgument)
	}
	k, err := m.mutate(ctx, keyID, models.Admin(), func(_ context.Context, _ *models.User, k *models.Key) error {
		k.TrafficLimit = gb * models.BytesInGB
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if notify {
		m.notifyUser(ctx, k.UserID, models.NotifyKeyLimits,
			fmt.Sprintf("Лимит трафика ключа #%d: %s.", k.ID, limitText(gb, "ГБ")))
	}
	return k, nil
}

// SetDeviceLimit задаёт лимит устройств. 0 снимает лимит.
func (m *Manager) SetDeviceLimit(ctx context.Context, keyID int64, devices int, notify bool) (*models.Key, error) {
	const op = "lifecycle.SetDeviceLimit"
	if devices < 0 {
		return nil, fmt.Errorf("%s: negative device limit: %w", op, models.ErrInvalidArgument)
	}
	k, err := m.mutate(ctx, keyID, models.Admin(), func(_ context.Context, _ *models.User, k *models.Key) error {
		k.DevicesLimit = devices
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if notify {
		m.notifyUser(ctx, k.UserID, models.NotifyKeyLimits,
			fmt.Sprintf("Лимит устройств ключа #%d: %s.", k.ID, limitText(int64(devices), "шт.")))
	}
	return k, nil
}

func limitText(n int64, unit string) string {
	if n == 0 {
		return "без ограничений"
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// Block вручную блокирует ключ. Срок действия не меняется,
// место в скваде остаётся занятым.
func (m *Manager) Block(ctx context.Context, keyID int64, reason string, notify bool) (*models.Key, error) {
	const op = "lifecycle.Block"
	k, err := m.mutate(ctx, keyID, models.Admin(), func(_ context.Context, _ *models.User, k *models.Key) error {
		k.Blocked = true
		k.BlockReason = reason
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.log.Info("key blocked", slog.String("op", op), slog.Int64("key_id", k.ID), slog.String("reason", reason))
	if notify {
		text := fmt.Sprintf("Ключ #%d заблокирован.", k.ID)
		if reason != "" {
			text = fmt.Sprintf("Ключ #%d заблокирован: %s.", k.ID, reason)
		}
		m.notifyUser(ctx, k.UserID, models.NotifyKeyBlocked, text)
	}
	return k, nil
}

// Unblock снимает ручную блокировку. Статус снова вычисляется по сроку.
func (m *Manager) Unblock(ctx context.Context, keyID int64, notify bool) (*models.Key, error) {
	const op = "lifecycle.Unblock"
	k, err := m.mutate(ctx, keyID, models.Admin(), func(_ context.Context, _ *models.User, k *models.Key) error {
		k.Blocked = false
		k.BlockReason = ""
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.log.Info("key unblocked", slog.String("op", op), slog.Int64("key_id", k.ID), slog.String("status", string(k.Status)))
	if notify {
		m.notifyUser(ctx, k.UserID, models.NotifyKeyUnblock, fmt.Sprintf("Ключ #%d разблокирован.", k.ID))
	}
	return k, nil
}

// Reassign переносит ключ в сквад, выбранный балансировщиком среди preferred
// (или по соответствию для типа ключа). Если выбран тот же сквад, ключ не меняется.
func (m *Manager) Reassign(ctx context.Context, keyID int64, preferred []string) (*models.Key, error) {
	const op = "lifecycle.Reassign"
	k, err := m.repo.GetKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(preferred) == 0 {
		if preferred, err = m.registry.Preferred(ctx, k.Type); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var (
		target  string
		oldSlot string
	)
	err = m.locker.WithUser(ctx, k.UserID, func(ctx context.Context) error {
		var err error
		target, err = m.registry.Assign(ctx, k.Type, preferred)
		if err != nil {
			return err
		}
		moved := false
		k, err = m.mutateLocked(ctx, keyID, func(k *models.Key) {
			oldSlot = k.Squad()
			if oldSlot == target {
				return
			}
			k.SquadUUID = &target
			moved = true
		})
		if err != nil || !moved {
			m.releaseSlot(ctx, target)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if oldSlot != target {
		m.releaseSlot(ctx, oldSlot)
		m.log.Info("key reassigned",
			slog.String("op", op), slog.Int64("key_id", keyID),
			slog.String("from", oldSlot), slog.String("to", target))
	}
	m.invalidateKey(ctx, keyID)
	return k, nil
}

// mutateLocked — вариант mutate для вызова под уже взятой блокировкой пользователя.
func (m *Manager) mutateLocked(ctx context.Context, keyID int64, fn func(k *models.Key)) (*models.Key, error) {
	var (
		updated *models.Key
		before  models.Key
	)
	panelMutated := false
	err := m.repo.InTx(ctx, func(ctx context.Context) error {
		key, err := m.repo.GetKeyForUpdate(ctx, keyID)
		if err != nil {
			return err
		}
		before = *key
		fn(key)
		if key.Squad() == before.Squad() {
			updated = key
			return nil
		}
		if err = m.repo.UpdateKey(ctx, key); err != nil {
			return err
		}
		if err = m.panel.MutateKey(ctx, key.ExternalUUID, panelState(key)); err != nil {
			return err
		}
		panelMutated = true
		updated = key
		return nil
	})
	if err != nil && panelMutated {
		m.revertPanel(ctx, &before)
	}
	return updated, err
}

// Delete удаляет ключ. Удаление из БД и освобождение места фиксируются первыми,
// удаление в панели выполняется после и его ошибка возвращается в результате.
func (m *Manager) Delete(ctx context.Context, keyID int64, notify bool, actor models.Actor) (*models.DeleteKeyResult, error) {
	const op = "lifecycle.Delete"
	k, err := m.accessibleKey(ctx, keyID, actor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &models.DeleteKeyResult{KeyID: keyID}
	err = m.locker.WithUser(ctx, k.UserID, func(ctx context.Context) error {
		var deleted *models.Key
		err := m.repo.InTx(ctx, func(ctx context.Context) error {
			key, err := m.repo.GetKeyForUpdate(ctx, keyID)
			if err != nil {
				return err
			}
			if err = m.repo.DeleteKey(ctx, keyID); err != nil {
				return err
			}
			if err = m.registry.ReleaseInTx(ctx, key.Squad()); err != nil {
				return err
			}
			deleted = key
			return nil
		})
		if err != nil {
			return err
		}
		m.registry.InvalidateList(ctx)
		if err = m.panel.DeleteKey(ctx, deleted.ExternalUUID); err != nil {
			m.log.Warn("panel key not deleted",
				slog.String("op", op), slog.Int64("key_id", keyID),
				slog.String("external_uuid", deleted.ExternalUUID), sl.Err(err))
			res.ExternalError = err.Error()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.invalidateKey(ctx, keyID)
	m.log.Info("key deleted", slog.String("op", op), slog.Int64("key_id", keyID))
	if notify {
		m.notifyUser(ctx, k.UserID, models.NotifyKeyDeleted, fmt.Sprintf("Ключ #%d удалён.", keyID))
	}
	return res, nil
}

// Get возвращает ключ с производными полями. Карточка ключа кэшируется.
func (m *Manager) Get(ctx context.Context, keyID int64, actor models.Actor) (*models.KeyView, error) {
	const op = "lifecycle.Get"
	var k models.Key
	found, err := m.cache.Get(ctx, cache.KeyCacheKey(keyID), &k)
	if err != nil {
		m.log.Warn("key cache read failed", slog.String("op", op), sl.Err(err))
	}
	if !found {
		stored, err := m.repo.GetKey(ctx, keyID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		k = *stored
		if err = m.cache.Set(ctx, cache.KeyCacheKey(keyID), k, 0); err != nil {
			m.log.Warn("key cache write failed", slog.String("op", op), sl.Err(err))
		}
	}
	if !actor.CanAccess(k.UserID) {
		return nil, fmt.Errorf("%s: key %d: %w", op, keyID, models.ErrNotFound)
	}
	view := models.NewKeyView(&k, m.now())
	return &view, nil
}

// ListByUser возвращает все ключи пользователя.
func (m *Manager) ListByUser(ctx context.Context, userID int64, actor models.Actor) ([]models.KeyView, error) {
	const op = "lifecycle.ListByUser"
	if !actor.CanAccess(userID) {
		return nil, fmt.Errorf("%s: user %d: %w", op, userID, models.ErrNotFound)
	}
	if _, err := m.repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	keys, err := m.repo.ListKeysByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := m.now()
	views := make([]models.KeyView, 0, len(keys))
	for i := range keys {
		views = append(views, models.NewKeyView(&keys[i], now))
	}
	return views, nil
}

func (m *Manager) notifyUser(ctx context.Context, userID int64, kind models.NotificationKind, text string) {
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		m.log.Warn("notification skipped", slog.Int64("user_id", userID), sl.Err(err))
		return
	}
	m.notifier.Notify(ctx, models.Notification{
		UserID:     user.ID,
		TelegramID: user.TelegramID,
		Kind:       kind,
		Text:       text,
	})
}
