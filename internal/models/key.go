package models

import (
	"math"
	"time"
)

// ForeverDays — срок «вечного» ключа, около 75 лет. Это конечное значение,
// чтобы расчёт оставшихся дней и сравнения дат оставались определены.
const ForeverDays = 27394

// BytesInGB: множитель для лимитов трафика, задаваемых в гигабайтах.
const BytesInGB int64 = 1 << 30

// KeyStatus — статус VPN-ключа.
type KeyStatus string

// Возможные статусы ключа.
const (
	KeyStatusActive  KeyStatus = "Active"
	KeyStatusExpired KeyStatus = "Expired"
	KeyStatusBlocked KeyStatus = "Blocked"
)

// SubscriptionType: тип подписки и одновременно тип сквада.
type SubscriptionType string

// Типы подписок.
const (
	SubscriptionVPN       SubscriptionType = "vpn"
	SubscriptionWhitelist SubscriptionType = "whitelist"
	SubscriptionTrial     SubscriptionType = "trial"
)

// SubscriptionTypes перечисляет все типы в фиксированном порядке.
var SubscriptionTypes = []SubscriptionType{SubscriptionVPN, SubscriptionWhitelist, SubscriptionTrial}

// Valid сообщает, является ли тип известным.
func (t SubscriptionType) Valid() bool {
	switch t {
	case SubscriptionVPN, SubscriptionWhitelist, SubscriptionTrial:
		return true
	}
	return false
}

// Key — VPN-ключ (подписка) пользователя, привязанный к одному скваду.
// Статус в базе служит кэшем, источником истины служит EffectiveStatus.
type Key struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	ExternalUUID    string           `json:"external_uuid"`
	SubscriptionURL string           `json:"subscription_url"`
	Status          KeyStatus        `json:"status"`
	ExpiryDate      time.Time        `json:"expiry_date"`
	TrafficUsed     int64            `json:"traffic_used"`
	TrafficLimit    int64            `json:"traffic_limit"`
	DevicesUsed     int              `json:"devices_used"`
	DevicesLimit    int              `json:"devices_limit"`
	SquadUUID       *string          `json:"squad_uuid,omitempty"`
	Type            SubscriptionType `json:"type"`
	IsTrial         bool             `json:"is_trial"`
	IsForever       bool             `json:"is_forever"`
	Blocked         bool             `json:"blocked"`
	BlockReason     string           `json:"block_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// EffectiveStatus вычисляет статус ключа на момент now.
// Ручная блокировка проверяется первой и не зависит от срока действия.
func (k *Key) EffectiveStatus(now time.Time) KeyStatus {
	if k.Blocked {
		return KeyStatusBlocked
	}
	if !now.Before(k.ExpiryDate) {
		return KeyStatusExpired
	}
	return KeyStatusActive
}

// DaysLeft возвращает ceil((ExpiryDate - now) / 1 день), но не меньше нуля.
func (k *Key) DaysLeft(now time.Time) int {
	left := k.ExpiryDate.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// Squad возвращает uuid сквада или пустую строку, если ключ ещё не назначен.
func (k *Key) Squad() string {
	if k.SquadUUID == nil {
		return ""
	}
	return *k.SquadUUID
}

// KeyView: ключ вместе с производными полями для ответа API.
type KeyView struct {
	*Key
	EffectiveStatus KeyStatus `json:"effective_status"`
	DaysLeft        int       `json:"days_left"`
}

// NewKeyView собирает KeyView на момент now.
func NewKeyView(k *Key, now time.Time) KeyView {
	return KeyView{Key: k, EffectiveStatus: k.EffectiveStatus(now), DaysLeft: k.DaysLeft(now)}
}

// KeyInfo — данные для напоминания об окончании ключа.
type KeyInfo struct {
	KeyID      int64     `json:"key_id"`
	UserID     int64     `json:"user_id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// CreateKeyParams: параметры выдачи нового ключа.
// Days игнорируется для вечного ключа. Price в копейках списывается с баланса.
// Пустой SquadPreferences означает соответствие сквадов для типа.
type CreateKeyParams struct {
	UserID           int64            `json:"user_id" validate:"required,gt=0"`
	Days             int              `json:"days" validate:"gte=0"`
	TrafficLimitGB   int64            `json:"traffic_limit_gb" validate:"gte=0"`
	DevicesLimit     int              `json:"devices_limit" validate:"gte=0"`
	Type             SubscriptionType `json:"type"`
	IsTrial          bool             `json:"is_trial"`
	IsForever        bool             `json:"is_forever"`
	SquadPreferences []string         `json:"squad_preferences,omitempty"`
	Price            int64            `json:"price" validate:"gte=0"`
	Notify           bool             `json:"notify"`
}

// DeleteKeyResult — итог удаления ключа. Локальное удаление уже
// зафиксировано; ExternalError непуст, если панель не удалила пользователя.
type DeleteKeyResult struct {
	KeyID         int64  `json:"key_id"`
	ExternalError string `json:"external_error,omitempty"`
}
