package models

import "time"

// PanelKeyParams — параметры создания пользователя во внешней панели.
type PanelKeyParams struct {
	Username          string
	TelegramID        int64
	ExpireAt          time.Time
	TrafficLimitBytes int64
	DeviceLimit       int
	Squads            []string
}

// PanelKeyUpdate — изменение пользователя в панели. nil означает «не менять».
type PanelKeyUpdate struct {
	ExpireAt          *time.Time
	TrafficLimitBytes *int64
	DeviceLimit       *int
	Squads            []string
	Disabled          *bool
}

// PanelKey — пользователь панели, соответствующий одному ключу.
type PanelKey struct {
	UUID             string
	SubscriptionURL  string
	ExpireAt         time.Time
	UsedTrafficBytes int64
	Status           string
}
