package models

import "time"

// PromoType — вид промокода.
type PromoType string

// Виды промокодов: balance начисляет Value копеек на баланс,
// subscription выдаёт ключ на Value дней.
const (
	PromoBalance      PromoType = "balance"
	PromoSubscription PromoType = "subscription"
)

// Valid сообщает, является ли вид известным.
func (t PromoType) Valid() bool {
	return t == PromoBalance || t == PromoSubscription
}

// Promo — промокод. Код хранится в верхнем регистре.
// UsesLimit == 0 означает отсутствие лимита.
type Promo struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Type      PromoType  `json:"type"`
	Value     int64      `json:"value"`
	UsesCount int        `json:"uses_count"`
	UsesLimit int        `json:"uses_limit"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// PromoResult описывает эффект применённого промокода.
type PromoResult struct {
	Code        string       `json:"code"`
	Type        PromoType    `json:"type"`
	Value       int64        `json:"value"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Key         *Key         `json:"key,omitempty"`
}
