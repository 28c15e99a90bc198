package models

import (
	"encoding/json"
	"fmt"
)

// MassActionType — тег варианта массового действия.
type MassActionType string

// Поддерживаемые массовые действия.
const (
	MassAddBalance    MassActionType = "add_balance"
	MassSubBalance    MassActionType = "sub_balance"
	MassExtendDays    MassActionType = "extend_days"
	MassReduceDays    MassActionType = "reduce_days"
	MassSetTraffic    MassActionType = "set_traffic"
	MassSetDevices    MassActionType = "set_devices"
	MassBlockKeys     MassActionType = "block_keys"
	MassUnblockKeys   MassActionType = "unblock_keys"
	MassDeleteKeys    MassActionType = "delete_keys"
	MassBanUsers      MassActionType = "ban_users"
	MassUnbanUsers    MassActionType = "unban_users"
	MassResetTrial    MassActionType = "reset_trial"
	MassSetPartner    MassActionType = "set_partner"
	MassRemovePartner MassActionType = "remove_partner"
	MassNotify        MassActionType = "notify"
)

// MassAction: массовое действие. Каждый вариант несёт свои типизированные параметры.
type MassAction interface {
	ActionType() MassActionType
}

// AddBalanceAction начисляет Amount копеек.
type AddBalanceAction struct {
	Amount int64 `json:"amount" validate:"gt=0"`
	Notify bool  `json:"notify"`
}

// SubBalanceAction списывает Amount копеек (админское списание, без нижней границы).
type SubBalanceAction struct {
	Amount int64 `json:"amount" validate:"gt=0"`
	Notify bool  `json:"notify"`
}

// ExtendDaysAction продлевает все ключи пользователя на Days дней бесплатно.
type ExtendDaysAction struct {
	Days   int  `json:"days" validate:"gt=0"`
	Notify bool `json:"notify"`
}

// ReduceDaysAction сокращает все ключи пользователя на Days дней.
type ReduceDaysAction struct {
	Days   int  `json:"days" validate:"gt=0"`
	Notify bool `json:"notify"`
}

// SetTrafficAction задаёт лимит трафика в ГБ (0 снимает лимит).
type SetTrafficAction struct {
	GB     int64 `json:"gb" validate:"gte=0"`
	Notify bool  `json:"notify"`
}

// SetDevicesAction задаёт лимит устройств (0 снимает лимит).
type SetDevicesAction struct {
	Devices int  `json:"devices" validate:"gte=0"`
	Notify  bool `json:"notify"`
}

// BlockKeysAction вручную блокирует все ключи пользователя.
type BlockKeysAction struct {
	Reason string `json:"reason"`
	Notify bool   `json:"notify"`
}

// UnblockKeysAction снимает ручную блокировку со всех ключей пользователя.
type UnblockKeysAction struct {
	Notify bool `json:"notify"`
}

// DeleteKeysAction удаляет все ключи пользователя.
type DeleteKeysAction struct {
	Notify bool `json:"notify"`
}

// BanUsersAction помещает пользователя в чёрный список.
type BanUsersAction struct {
	Reason string `json:"reason"`
	Notify bool   `json:"notify"`
}

// UnbanUsersAction убирает пользователя из чёрного списка.
type UnbanUsersAction struct {
	Notify bool `json:"notify"`
}

// ResetTrialAction разрешает повторный пробный период.
type ResetTrialAction struct {
	Notify bool `json:"notify"`
}

// SetPartnerAction делает пользователя партнёром со ставкой Rate процентов.
type SetPartnerAction struct {
	Rate   int  `json:"rate" validate:"gte=0,lte=100"`
	Notify bool `json:"notify"`
}

// RemovePartnerAction снимает партнёрский статус.
type RemovePartnerAction struct {
	Notify bool `json:"notify"`
}

// NotifyAction только отправляет сообщение.
type NotifyAction struct {
	Text string `json:"text" validate:"required"`
}

func (AddBalanceAction) ActionType() MassActionType    { return MassAddBalance }
func (SubBalanceAction) ActionType() MassActionType    { return MassSubBalance }
func (ExtendDaysAction) ActionType() MassActionType    { return MassExtendDays }
func (ReduceDaysAction) ActionType() MassActionType    { return MassReduceDays }
func (SetTrafficAction) ActionType() MassActionType    { return MassSetTraffic }
func (SetDevicesAction) ActionType() MassActionType    { return MassSetDevices }
func (BlockKeysAction) ActionType() MassActionType     { return MassBlockKeys }
func (UnblockKeysAction) ActionType() MassActionType   { return MassUnblockKeys }
func (DeleteKeysAction) ActionType() MassActionType    { return MassDeleteKeys }
func (BanUsersAction) ActionType() MassActionType      { return MassBanUsers }
func (UnbanUsersAction) ActionType() MassActionType    { return MassUnbanUsers }
func (ResetTrialAction) ActionType() MassActionType    { return MassResetTrial }
func (SetPartnerAction) ActionType() MassActionType    { return MassSetPartner }
func (RemovePartnerAction) ActionType() MassActionType { return MassRemovePartner }
func (NotifyAction) ActionType() MassActionType        { return MassNotify }

// DecodeMassAction разбирает параметры действия по его тегу.
func DecodeMassAction(t MassActionType, params json.RawMessage) (MassAction, error) {
	var action MassAction
	switch t {
	case MassAddBalance:
		action = &AddBalanceAction{}
	case MassSubBalance:
		action = &SubBalanceAction{}
	case MassExtendDays:
		action = &ExtendDaysAction{}
	case MassReduceDays:
		action = &ReduceDaysAction{}
	case MassSetTraffic:
		action = &SetTrafficAction{}
	case MassSetDevices:
		action = &SetDevicesAction{}
	case MassBlockKeys:
		action = &BlockKeysAction{}
	case MassUnblockKeys:
		action = &UnblockKeysAction{}
	case MassDeleteKeys:
		action = &DeleteKeysAction{}
	case MassBanUsers:
		action = &BanUsersAction{}
	case MassUnbanUsers:
		action = &UnbanUsersAction{}
	case MassResetTrial:
		action = &ResetTrialAction{}
	case MassSetPartner:
		action = &SetPartnerAction{}
	case MassRemovePartner:
		action = &RemovePartnerAction{}
	case MassNotify:
		action = &NotifyAction{}
	default:
		return nil, fmt.Errorf("%w: unknown mass action %q", ErrInvalidArgument, t)
	}
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, action); err != nil {
			return nil, fmt.Errorf("%w: params for %q: %v", ErrInvalidArgument, t, err)
		}
	}
	return action, nil
}

// ItemFailure — ошибка обработки одного элемента массового действия.
type ItemFailure struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// MassActionResult: поэлементный итог массового действия.
// Interrupted == true, если выполнение остановлено между элементами.
type MassActionResult struct {
	Action      MassActionType `json:"action"`
	Succeeded   []int64        `json:"succeeded"`
	Failed      []ItemFailure  `json:"failed"`
	Interrupted bool           `json:"interrupted"`
}
