package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType — направление движения средств.
type TransactionType string

// Направления.
const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// TransactionReason: причина изменения баланса.
type TransactionReason string

// Причины изменения баланса.
const (
	ReasonAdminCredit    TransactionReason = "admin_credit"
	ReasonAdminDebit     TransactionReason = "admin_debit"
	ReasonKeyPurchase    TransactionReason = "key_purchase"
	ReasonKeyExtend      TransactionReason = "key_extend"
	ReasonPromo          TransactionReason = "promo"
	ReasonRefund         TransactionReason = "refund"
	ReasonReferralIncome TransactionReason = "referral_income"
	ReasonDeposit        TransactionReason = "deposit"
)

// Account — счёт пользователя, к которому относится транзакция.
type Account string

// Счета: основной баланс и партнёрский.
const (
	AccountBalance Account = "balance"
	AccountPartner Account = "partner"
)

// TransactionStatusSuccess: статус проведённой транзакции.
const TransactionStatusSuccess = "Success"

// Transaction — неизменяемая запись журнала. Возврат оформляется новой
// записью с обратным знаком и ссылкой RefundOf.
type Transaction struct {
	ID                 int64             `json:"id"`
	UserID             int64             `json:"user_id"`
	Amount             int64             `json:"amount"`
	Type               TransactionType   `json:"type"`
	Status             string            `json:"status"`
	Method             string            `json:"method"`
	Reason             TransactionReason `json:"reason"`
	Account            Account           `json:"account"`
	RelatedOperationID string            `json:"related_operation_id,omitempty"`
	RefundOf           *int64            `json:"refund_of,omitempty"`
	Hash               string            `json:"hash"`
	CreatedAt          time.Time         `json:"created_at"`
}

// Delta: изменение баланса пользователя. Amount в копейках со знаком.
// Без AllowNegative списание, уводящее баланс в минус, отклоняется.
type Delta struct {
	UserID             int64
	Amount             int64
	Reason             TransactionReason
	RelatedOperationID string
	Method             string
	AllowNegative      bool
}

// TypeForAmount возвращает направление по знаку суммы.
func TypeForAmount(amount int64) TransactionType {
	if amount < 0 {
		return TransactionExpense
	}
	return TransactionIncome
}

// ParseRubles переводит сумму в рублях ("150", "99.90") в копейки.
// Больше двух знаков после запятой не допускается.
func ParseRubles(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", ErrInvalidArgument, s)
	}
	kopecks := d.Shift(2)
	if !kopecks.Equal(kopecks.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %q has more than two decimal places", ErrInvalidArgument, s)
	}
	return kopecks.IntPart(), nil
}

// FormatRubles форматирует копейки как рубли с двумя знаками.
func FormatRubles(kopecks int64) string {
	return decimal.New(kopecks, -2).StringFixed(2)
}
