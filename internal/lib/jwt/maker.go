// Package jwt реализует выпуск и разбор JWT токенов панели и мини-приложения.
//
// Токен несёт роль (admin или user) и, для пользователя мини-приложения,
// его внутренний идентификатор. По этим полям HTTP-слой строит models.Actor.
package jwt

import (
	"time"
)

// Maker описывает выпуск и разбор JWT токенов.
type Maker interface {
	GenerateToken(subject, role string, userID int64) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на HMAC-SHA256 с общим секретом.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт MakerImpl по секрету и времени жизни токена.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
