package models

// NotificationKind — вид уведомления, по нему выбирается routing key.
type NotificationKind string

// Виды уведомлений.
const (
	NotifyKeyCreated  NotificationKind = "key_created"
	NotifyKeyExtended NotificationKind = "key_extended"
	NotifyKeyReduced  NotificationKind = "key_reduced"
	NotifyKeyBlocked  NotificationKind = "key_blocked"
	NotifyKeyUnblock  NotificationKind = "key_unblocked"
	NotifyKeyDeleted  NotificationKind = "key_deleted"
	NotifyKeyLimits   NotificationKind = "key_limits"
	NotifyKeyExpiring NotificationKind = "key_expiring"
	NotifyBalance     NotificationKind = "balance"
	NotifyAccount     NotificationKind = "account"
	NotifyMessage     NotificationKind = "message"
)

// Notification — намерение уведомить пользователя. Публикуется в шину,
// доставку выполняет отдельный сервис, результат доставки не ожидается.
type Notification struct {
	UserID     int64            `json:"user_id"`
	TelegramID int64            `json:"telegram_id"`
	Kind       NotificationKind `json:"kind"`
	Text       string           `json:"text"`
}

// Operator — учётная запись оператора панели управления.
type Operator struct {
	ID           int64
	Username     string
	PasswordHash string
}
