package models

// Роли в JWT.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Actor — от чьего имени выполняется операция: администратор панели
// или сам пользователь через мини-приложение.
type Actor struct {
	Role   string
	UserID int64
}

// Admin возвращает Actor администратора.
func Admin() Actor {
	return Actor{Role: RoleAdmin}
}

// SelfService возвращает Actor пользователя userID.
func SelfService(userID int64) Actor {
	return Actor{Role: RoleUser, UserID: userID}
}

// IsAdmin сообщает, действует ли администратор.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess сообщает, может ли Actor работать с данными пользователя userID.
func (a Actor) CanAccess(userID int64) bool {
	return a.IsAdmin() || a.UserID == userID
}
