package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/squad-orchestrator/internal/migrations"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя с балансом balance
func (f *TestDataFactory) CreateUser(t *testing.T, telegramID, balance int64) *models.User {
	u := &models.User{
		TelegramID:   telegramID,
		Username:     fmt.Sprintf("user%d", telegramID),
		Status:       models.UserStatusActive,
		ReferralCode: fmt.Sprintf("REF%d", telegramID),
	}
	_, err := f.storage.CreateUser(context.Background(), u)
	require.NoError(t, err)
	if balance != 0 {
		u.Balance, err = f.storage.AddBalance(context.Background(), u.ID, balance)
		require.NoError(t, err)
	}
	return u
}

// CreateSquad создает тестовый сквад
func (f *TestDataFactory) CreateSquad(t *testing.T, squadUUID string, maxUsers, currentUsers int) models.Squad {
	sq := models.Squad{
		UUID:         squadUUID,
		Name:         "squad " + squadUUID,
		Type:         models.SubscriptionVPN,
		MaxUsers:     maxUsers,
		CurrentUsers: currentUsers,
		IsActive:     true,
	}
	require.NoError(t, f.storage.InsertSquad(context.Background(), sq))
	return sq
}

// CreateKey создает тестовый ключ в скваде squadUUID
func (f *TestDataFactory) CreateKey(t *testing.T, userID int64, squadUUID string, expiry time.Time) *models.Key {
	k := &models.Key{
		UserID:       userID,
		ExternalUUID: uuid.NewString(),
		Status:       models.KeyStatusActive,
		ExpiryDate:   expiry,
		Type:         models.SubscriptionVPN,
	}
	if squadUUID != "" {
		k.SquadUUID = &squadUUID
	}
	_, err := f.storage.CreateKey(context.Background(), k)
	require.NoError(t, err)
	return k
}

// setupTestDatabase поднимает PostgreSQL в контейнере и накатывает миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(3 * time.Minute),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start container")

	host, err := postgresContainer.Host(ctx)
	require.NoError(t, err)
	port, err := postgresContainer.MappedPort(ctx, "5432")
	require.NoError(t, err, "Failed to get port")

	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(ctx, connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "Failed to create storage after retries")

	migrationsPath, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
