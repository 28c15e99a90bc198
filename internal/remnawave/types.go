package remnawave

import "time"

// Статусы пользователя в панели.
const (
	statusActive   = "ACTIVE"
	statusDisabled = "DISABLED"
)

const trafficStrategyNoReset = "NO_RESET"

type envelope[T any] struct {
	Response T `json:"response"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type squadDTO struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Info struct {
		MembersCount int `json:"membersCount"`
	} `json:"info"`
}

type squadsResponse struct {
	InternalSquads []squadDTO `json:"internalSquads"`
}

type userTrafficDTO struct {
	UsedTrafficBytes int64 `json:"usedTrafficBytes"`
}

type userDTO struct {
	UUID            string          `json:"uuid"`
	Username        string          `json:"username"`
	Status          string          `json:"status"`
	ExpireAt        time.Time       `json:"expireAt"`
	SubscriptionURL string          `json:"subscriptionUrl"`
	UsedTraffic     int64           `json:"usedTrafficBytes"`
	UserTraffic     *userTrafficDTO `json:"userTraffic"`
}

type usersPage struct {
	Users []userDTO `json:"users"`
	Total int       `json:"total"`
}

type createUserRequest struct {
	Username             string   `json:"username"`
	Status               string   `json:"status"`
	ExpireAt             string   `json:"expireAt"`
	TrafficLimitBytes    int64    `json:"trafficLimitBytes"`
	TrafficLimitStrategy string   `json:"trafficLimitStrategy"`
	TelegramID           *int64   `json:"telegramId,omitempty"`
	HwidDeviceLimit      *int     `json:"hwidDeviceLimit,omitempty"`
	ActiveInternalSquads []string `json:"activeInternalSquads,omitempty"`
}

type updateUserRequest struct {
	UUID                 string   `json:"uuid"`
	Status               string   `json:"status,omitempty"`
	ExpireAt             string   `json:"expireAt,omitempty"`
	TrafficLimitBytes    *int64   `json:"trafficLimitBytes,omitempty"`
	HwidDeviceLimit      *int     `json:"hwidDeviceLimit,omitempty"`
	ActiveInternalSquads []string `json:"activeInternalSquads,omitempty"`
}
