package panelsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/squad-orchestrator/internal/cache"
	"github.com/magabrotheeeer/squad-orchestrator/internal/config"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/metrics"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/registry"
	"github.com/magabrotheeeer/squad-orchestrator/internal/storage/storagetest"
)

type PanelMock struct {
	mock.Mock
}

func (m *PanelMock) ListSquads(ctx context.Context) ([]models.ExternalSquad, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExternalSquad), args.Error(1)
}

func (m *PanelMock) ListKeys(ctx context.Context) ([]models.PanelKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PanelKey), args.Error(1)
}

func newTestService(t *testing.T) (*Service, *storagetest.Store, *PanelMock) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr(), CacheTTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storagetest.New()
	panel := &PanelMock{}
	reg := registry.New(store, c, metrics.NewNoop(), log)
	return New(panel, reg, store, c, log), store, panel
}

func TestSyncSquads(t *testing.T) {
	ctx := context.Background()
	svc, store, panel := newTestService(t)
	require.NoError(t, store.InsertSquad(ctx, models.Squad{UUID: "gone", Type: models.SubscriptionVPN, IsActive: true}))

	panel.On("ListSquads", mock.Anything).Return([]models.ExternalSquad{{UUID: "new", Name: "NL-1"}}, nil).Once()
	diff, err := svc.SyncSquads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, diff.Added)
	assert.Equal(t, []string{"gone"}, diff.RemovedFlagged)
}

func TestSyncSquads_PanelDownLeavesRegistry(t *testing.T) {
	ctx := context.Background()
	svc, store, panel := newTestService(t)
	require.NoError(t, store.InsertSquad(ctx, models.Squad{UUID: "a", Type: models.SubscriptionVPN, IsActive: true}))

	panel.On("ListSquads", mock.Anything).
		Return(nil, fmt.Errorf("remnawave.ListSquads: %w", models.ErrExternalPanelUnavailable)).Once()
	_, err := svc.SyncSquads(ctx)
	assert.ErrorIs(t, err, models.ErrExternalPanelUnavailable)

	sq, err := store.GetSquad(ctx, "a")
	require.NoError(t, err)
	assert.False(t, sq.Stale)
}

func TestSyncKeys(t *testing.T) {
	ctx := context.Background()
	svc, store, panel := newTestService(t)
	require.NoError(t, store.InsertSquad(ctx, models.Squad{UUID: "sq", Type: models.SubscriptionVPN, IsActive: true, CurrentUsers: 7}))
	u := store.AddUser(models.User{TelegramID: 1})
	squad := "sq"

	kept := &models.Key{UserID: u.ID, ExternalUUID: "ext-kept", SquadUUID: &squad, ExpiryDate: time.Now().Add(time.Hour)}
	orphan := &models.Key{UserID: u.ID, ExternalUUID: "ext-orphan", SquadUUID: &squad, ExpiryDate: time.Now().Add(time.Hour)}
	_, err := store.CreateKey(ctx, kept)
	require.NoError(t, err)
	_, err = store.CreateKey(ctx, orphan)
	require.NoError(t, err)

	panel.On("ListKeys", mock.Anything).Return([]models.PanelKey{
		{UUID: "ext-kept", UsedTrafficBytes: 2048},
		{UUID: "ext-unknown"},
	}, nil).Once()

	res, err := svc.SyncKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{orphan.ID}, res.DeletedLocally)
	assert.Equal(t, 2, res.ExternalTotal)
	assert.Equal(t, 2, res.LocalTotal)

	_, err = store.GetKey(ctx, orphan.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	got, err := store.GetKey(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), got.TrafficUsed)

	sq, err := store.GetSquad(ctx, "sq")
	require.NoError(t, err)
	assert.Equal(t, 1, sq.CurrentUsers)

	panel.On("ListKeys", mock.Anything).Return([]models.PanelKey{{UUID: "ext-kept", UsedTrafficBytes: 2048}}, nil).Once()
	res, err = svc.SyncKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.DeletedLocally)
}

func TestSyncKeys_PanelDownDeletesNothing(t *testing.T) {
	ctx := context.Background()
	svc, store, panel := newTestService(t)
	u := store.AddUser(models.User{TelegramID: 1})
	k := &models.Key{UserID: u.ID, ExternalUUID: "ext-1"}
	_, err := store.CreateKey(ctx, k)
	require.NoError(t, err)

	panel.On("ListKeys", mock.Anything).Return(nil, models.ErrExternalPanelUnavailable).Once()
	_, err = svc.SyncKeys(ctx)
	assert.ErrorIs(t, err, models.ErrExternalPanelUnavailable)

	_, err = store.GetKey(ctx, k.ID)
	assert.NoError(t, err)
}

func TestSyncKeys_KeyCreatedDuringSyncSurvives(t *testing.T) {
	ctx := context.Background()
	svc, store, panel := newTestService(t)
	squad := "sq"
	require.NoError(t, store.InsertSquad(ctx, models.Squad{UUID: squad, Type: models.SubscriptionVPN, IsActive: true}))
	u := store.AddUser(models.User{TelegramID: 1})

	fresh := &models.Key{UserID: u.ID, ExternalUUID: "fresh", SquadUUID: &squad, ExpiryDate: time.Now().Add(time.Hour)}
	// Снимок панели сделан до выдачи ключа, запись в БД появляется сразу после.
	panel.On("ListKeys", mock.Anything).Return([]models.PanelKey{}, nil).Run(func(mock.Arguments) {
		_, err := store.CreateKey(ctx, fresh)
		require.NoError(t, err)
	}).Once()

	res, err := svc.SyncKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.DeletedLocally)
	assert.Equal(t, 0, res.LocalTotal)

	_, err = store.GetKey(ctx, fresh.ID)
	assert.NoError(t, err)
	panel.AssertExpectations(t)
}

func TestSyncKeys_KeyDeletedDuringSyncIsSkipped(t *testing.T) {
	ctx := context.Background()
	svc, store, panel := newTestService(t)
	u := store.AddUser(models.User{TelegramID: 1})
	k := &models.Key{UserID: u.ID, ExternalUUID: "ext-1"}
	_, err := store.CreateKey(ctx, k)
	require.NoError(t, err)

	panel.On("ListKeys", mock.Anything).Return([]models.PanelKey{}, nil).Run(func(mock.Arguments) {
		require.NoError(t, store.DeleteKey(ctx, k.ID))
	}).Once()

	res, err := svc.SyncKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.DeletedLocally)
	assert.Equal(t, 1, res.LocalTotal)
}

func TestSyncKeys_TrafficUpdateKeepsDevices(t *testing.T) {
	ctx := context.Background()
	svc, store, panel := newTestService(t)
	u := store.AddUser(models.User{TelegramID: 1})
	k := &models.Key{UserID: u.ID, ExternalUUID: "ext-1", DevicesUsed: 3, TrafficUsed: 10}
	_, err := store.CreateKey(ctx, k)
	require.NoError(t, err)

	panel.On("ListKeys", mock.Anything).Return([]models.PanelKey{{UUID: "ext-1", UsedTrafficBytes: 4096}}, nil).Once()
	_, err = svc.SyncKeys(ctx)
	require.NoError(t, err)

	got, err := store.GetKey(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), got.TrafficUsed)
	assert.Equal(t, 3, got.DevicesUsed)
}
