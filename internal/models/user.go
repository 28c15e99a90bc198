// Package models содержит доменные структуры сервиса: пользователей, VPN-ключи,
// сквады, транзакции, промокоды и массовые действия, а также доменные ошибки.
package models

import "time"

// UserStatus — хранимый статус пользователя.
type UserStatus string

// Возможные статусы пользователя.
const (
	UserStatusActive  UserStatus = "Active"
	UserStatusTrial   UserStatus = "Trial"
	UserStatusBanned  UserStatus = "Banned"
	UserStatusExpired UserStatus = "Expired"
)

// Valid сообщает, является ли статус одним из известных.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusTrial, UserStatusBanned, UserStatusExpired:
		return true
	}
	return false
}

// User представляет пользователя, пришедшего из Telegram.
// Баланс хранится в копейках и на уровне хранилища может быть отрицательным:
// запрет ухода в минус проверяет сервисный слой.
type User struct {
	ID             int64      `json:"id"`
	TelegramID     int64      `json:"telegram_id"`
	Username       string     `json:"username"`
	FullName       string     `json:"full_name"`
	Balance        int64      `json:"balance"`
	Status         UserStatus `json:"status"`
	InBlacklist    bool       `json:"in_blacklist"`
	BanReason      string     `json:"ban_reason,omitempty"`
	IsPartner      bool       `json:"is_partner"`
	PartnerRate    int        `json:"partner_rate"`
	PartnerBalance int64      `json:"partner_balance"`
	ReferralCode   string     `json:"referral_code"`
	ReferredBy     *int64     `json:"referred_by,omitempty"`
	ReferralCount  int        `json:"referral_count"`
	TotalEarned    int64      `json:"total_earned"`
	TrialUsed      bool       `json:"trial_used"`
	CreatedAt      time.Time  `json:"created_at"`
}

// EffectiveStatus возвращает статус с учётом чёрного списка:
// InBlacklist всегда означает Banned, что бы ни было записано в Status.
func (u *User) EffectiveStatus() UserStatus {
	if u.InBlacklist {
		return UserStatusBanned
	}
	return u.Status
}

// NewUser используется при первом обращении пользователя из Telegram.
type NewUser struct {
	TelegramID   int64  `json:"telegram_id" validate:"required,gt=0"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// TargetFilter выбирает пользователей для массового действия.
// Пустой фильтр означает всех пользователей.
type TargetFilter struct {
	UserIDs   []int64      `json:"user_ids,omitempty"`
	Statuses  []UserStatus `json:"statuses,omitempty"`
	SquadUUID string       `json:"squad_uuid,omitempty"`
}
