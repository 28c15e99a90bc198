package models

import "time"

// Squad — группа серверов внешней панели, назначаемая как единица ёмкости.
// UUID и существование контролирует панель; имя, тип, лимиты, приоритет
// и активность можно менять локально.
type Squad struct {
	UUID         string           `json:"uuid"`
	Name         string           `json:"name"`
	Type         SubscriptionType `json:"type"`
	MaxUsers     int              `json:"max_users"`
	CurrentUsers int              `json:"current_users"`
	IsActive     bool             `json:"is_active"`
	Priority     int              `json:"priority"`
	Stale        bool             `json:"stale"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// HasCapacity сообщает, можно ли назначить в сквад ещё одного пользователя.
func (s *Squad) HasCapacity() bool {
	return s.MaxUsers == 0 || s.CurrentUsers < s.MaxUsers
}

// SquadSettings: локально редактируемые поля сквада.
type SquadSettings struct {
	Name     *string           `json:"name,omitempty"`
	Type     *SubscriptionType `json:"type,omitempty"`
	MaxUsers *int              `json:"max_users,omitempty"`
	Priority *int              `json:"priority,omitempty"`
	IsActive *bool             `json:"is_active,omitempty"`
}

// ExternalSquad — сквад в том виде, в каком его отдаёт панель.
type ExternalSquad struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	MembersCount int    `json:"members_count"`
}

// SquadMapping: списки разрешённых сквадов по типу подписки.
// Пустой список означает «все активные сквады этого типа».
type SquadMapping map[SubscriptionType][]string

// SyncDiff — результат сверки реестра сквадов с панелью.
type SyncDiff struct {
	Added          []string `json:"added"`
	Updated        []string `json:"updated"`
	RemovedFlagged []string `json:"removed_flagged"`
}
