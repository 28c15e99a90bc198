package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/metrics"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
	"github.com/magabrotheeeer/squad-orchestrator/internal/storage/storagetest"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T) (*Ledger, *storagetest.Store) {
	t.Helper()
	store := storagetest.New()
	return New(store, 5000, metrics.NewNoop(), newNoopLogger()), store
}

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name        string
		balance     int64
		delta       models.Delta
		wantErr     error
		wantBalance int64
	}{
		{
			name:        "credit",
			balance:     0,
			delta:       models.Delta{Amount: 10000, Reason: models.ReasonAdminCredit},
			wantBalance: 10000,
		},
		{
			name:        "debit within balance",
			balance:     10000,
			delta:       models.Delta{Amount: -9900, Reason: models.ReasonKeyPurchase},
			wantBalance: 100,
		},
		{
			name:        "debit to exactly zero",
			balance:     9900,
			delta:       models.Delta{Amount: -9900, Reason: models.ReasonKeyPurchase},
			wantBalance: 0,
		},
		{
			name:        "overdraft rejected",
			balance:     5000,
			delta:       models.Delta{Amount: -9900, Reason: models.ReasonKeyPurchase},
			wantErr:     models.ErrInsufficientBalance,
			wantBalance: 5000,
		},
		{
			name:        "admin debit may go negative",
			balance:     5000,
			delta:       models.Delta{Amount: -9900, Reason: models.ReasonAdminDebit, AllowNegative: true},
			wantBalance: -4900,
		},
		{
			name:        "zero amount rejected",
			balance:     5000,
			delta:       models.Delta{Amount: 0, Reason: models.ReasonAdminCredit},
			wantErr:     models.ErrInvalidArgument,
			wantBalance: 5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l, store := newTestLedger(t)
			u := store.AddUser(models.User{TelegramID: 1, Balance: tt.balance})
			tt.delta.UserID = u.ID

			tx, err := l.ApplyDelta(ctx, tt.delta)
			got, _ := store.GetUser(ctx, u.ID)
			assert.Equal(t, tt.wantBalance, got.Balance)

			history, _ := store.ListTransactions(ctx, u.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, history)
				return
			}
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, tx.ID, history[0].ID)
			assert.Equal(t, tt.delta.Amount, tx.Amount)
			assert.Equal(t, models.TypeForAmount(tt.delta.Amount), tx.Type)
			assert.Equal(t, models.AccountBalance, tx.Account)
			assert.NotEmpty(t, tx.Hash)
		})
	}
}

func TestApplyDelta_UnknownUser(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.ApplyDelta(context.Background(), models.Delta{UserID: 404, Amount: 1, Reason: models.ReasonAdminCredit})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplyDelta_JournalFailureRollsBackBalance(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	u := store.AddUser(models.User{TelegramID: 1, Balance: 1000})

	store.FailOn("InsertTransaction", errors.New("disk full"))
	_, err := l.ApplyDelta(ctx, models.Delta{UserID: u.ID, Amount: 500, Reason: models.ReasonAdminCredit})
	require.Error(t, err)

	got, _ := store.GetUser(ctx, u.ID)
	assert.Equal(t, int64(1000), got.Balance)
}

func TestApplyDelta_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	u := store.AddUser(models.User{TelegramID: 1, Balance: 10000})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyDelta(ctx, models.Delta{UserID: u.ID, Amount: -9900, Reason: models.ReasonKeyPurchase})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failed int
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, models.ErrInsufficientBalance)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	got, _ := store.GetUser(ctx, u.ID)
	assert.Equal(t, int64(100), got.Balance)
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	u := store.AddUser(models.User{TelegramID: 1, Balance: 10000})

	purchase, err := l.ApplyDelta(ctx, models.Delta{UserID: u.ID, Amount: -3000, Reason: models.ReasonKeyPurchase})
	require.NoError(t, err)

	refund, err := l.Refund(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), refund.Amount)
	assert.Equal(t, models.ReasonRefund, refund.Reason)
	require.NotNil(t, refund.RefundOf)
	assert.Equal(t, purchase.ID, *refund.RefundOf)

	got, _ := store.GetUser(ctx, u.ID)
	assert.Equal(t, int64(10000), got.Balance)

	_, err = l.Refund(ctx, purchase.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyUsed)

	_, err = l.Refund(ctx, refund.ID)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = l.Refund(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHistoryAndReconcile(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	u := store.AddUser(models.User{TelegramID: 1})

	_, err := l.ApplyDelta(ctx, models.Delta{UserID: u.ID, Amount: 20000, Reason: models.ReasonDeposit})
	require.NoError(t, err)
	_, err = l.ApplyDelta(ctx, models.Delta{UserID: u.ID, Amount: -9900, Reason: models.ReasonKeyPurchase})
	require.NoError(t, err)

	history, err := l.History(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ReasonKeyPurchase, history[0].Reason)

	rec, err := l.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, int64(10100), rec.Balance)

	_, err = store.AddBalance(ctx, u.ID, 1)
	require.NoError(t, err)
	rec, err = l.Reconcile(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
	assert.Equal(t, int64(10100), rec.LedgerSum)

	_, err = l.History(ctx, 777)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreditReferral(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	referrer := store.AddUser(models.User{TelegramID: 1})
	referrerID := referrer.ID
	referral := store.AddUser(models.User{TelegramID: 2, ReferredBy: &referrerID})
	loner := store.AddUser(models.User{TelegramID: 3})

	tx, err := l.CreditReferral(ctx, referral.ID)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, referrerID, tx.UserID)
	assert.Equal(t, models.AccountPartner, tx.Account)
	assert.Equal(t, int64(5000), tx.Amount)

	again, err := l.CreditReferral(ctx, referral.ID)
	require.NoError(t, err)
	assert.Nil(t, again)

	none, err := l.CreditReferral(ctx, loner.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	got, _ := store.GetUser(ctx, referrerID)
	assert.Equal(t, int64(5000), got.PartnerBalance)
	assert.Zero(t, got.Balance)

	rec, err := l.Reconcile(ctx, referrerID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}
