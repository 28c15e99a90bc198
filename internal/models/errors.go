package models

import "errors"

// Доменные ошибки. Сервисы оборачивают их через fmt.Errorf("%s: %w", op, err),
// обработчики HTTP сопоставляют их со статусами через errors.Is.
var (
	// ErrInsufficientBalance: самостоятельное списание превышает баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNoEligibleSquad означает, что нет активного сквада нужного типа со свободной ёмкостью.
	ErrNoEligibleSquad = errors.New("no eligible squad")
	// ErrExternalPanelUnavailable оборачивает ошибки обращения к внешней VPN-панели.
	ErrExternalPanelUnavailable = errors.New("external panel unavailable")
	// ErrNotFound: неизвестный идентификатор пользователя, ключа, сквада и т.п.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed возвращается при повторном использовании пробного периода, промокода, возврата.
	ErrAlreadyUsed = errors.New("already used")
	// ErrPromoExhausted: достигнут лимит использований промокода.
	ErrPromoExhausted = errors.New("promo exhausted")
	// ErrPromoExpired: промокод просрочен.
	ErrPromoExpired = errors.New("promo expired")
	// ErrBlacklisted запрещает самостоятельные операции пользователю из чёрного списка.
	ErrBlacklisted = errors.New("user is blacklisted")
	// ErrSquadFull: сквад заполнен до maxUsers.
	ErrSquadFull = errors.New("squad is full")
	// ErrInvalidArgument означает нарушение инварианта на входе (отрицательный лимит и т.п.).
	ErrInvalidArgument = errors.New("invalid argument")
)
