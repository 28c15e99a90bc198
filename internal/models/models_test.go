package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_EffectiveStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		key  Key
		want KeyStatus
	}{
		{
			name: "active in future",
			key:  Key{Status: KeyStatusActive, ExpiryDate: now.Add(time.Hour)},
			want: KeyStatusActive,
		},
		{
			name: "stored active but expired",
			key:  Key{Status: KeyStatusActive, ExpiryDate: now.Add(-time.Second)},
			want: KeyStatusExpired,
		},
		{
			name: "expiry exactly now is expired",
			key:  Key{Status: KeyStatusActive, ExpiryDate: now},
			want: KeyStatusExpired,
		},
		{
			name: "blocked wins over future expiry",
			key:  Key{Status: KeyStatusActive, Blocked: true, ExpiryDate: now.AddDate(0, 1, 0)},
			want: KeyStatusBlocked,
		},
		{
			name: "blocked wins over expired",
			key:  Key{Status: KeyStatusExpired, Blocked: true, ExpiryDate: now.AddDate(0, -1, 0)},
			want: KeyStatusBlocked,
		},
		{
			name: "stored expired but extended",
			key:  Key{Status: KeyStatusExpired, ExpiryDate: now.AddDate(0, 0, 3)},
			want: KeyStatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.EffectiveStatus(now))
		})
	}
}

func TestKey_DaysLeft(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   int
	}{
		{name: "exact days", expiry: now.AddDate(0, 0, 30), want: 30},
		{name: "partial day rounds up", expiry: now.Add(25 * time.Hour), want: 2},
		{name: "one second left", expiry: now.Add(time.Second), want: 1},
		{name: "expired clamps to zero", expiry: now.Add(-48 * time.Hour), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := Key{ExpiryDate: tt.expiry}
			assert.Equal(t, tt.want, k.DaysLeft(now))
		})
	}
}

func TestKey_ForeverDaysLeftAfterYear(t *testing.T) {
	created := time.Now()
	k := Key{IsForever: true, ExpiryDate: created.AddDate(0, 0, ForeverDays)}

	later := created.AddDate(1, 0, 0)
	left := k.DaysLeft(later)

	assert.Greater(t, left, 26000)
	assert.Less(t, left, ForeverDays)
	assert.Equal(t, KeyStatusActive, k.EffectiveStatus(later))
}

func TestUser_EffectiveStatus(t *testing.T) {
	u := User{Status: UserStatusActive}
	assert.Equal(t, UserStatusActive, u.EffectiveStatus())

	u.InBlacklist = true
	assert.Equal(t, UserStatusBanned, u.EffectiveStatus())
}

func TestParseRubles(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "150", want: 15000},
		{in: "99.9", want: 9990},
		{in: "0.01", want: 1},
		{in: "-20.50", want: -2050},
		{in: "1.005", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRubles(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "150.00", FormatRubles(15000))
}

func TestDecodeMassAction(t *testing.T) {
	action, err := DecodeMassAction(MassExtendDays, json.RawMessage(`{"days":7,"notify":true}`))
	require.NoError(t, err)
	ext, ok := action.(*ExtendDaysAction)
	require.True(t, ok)
	assert.Equal(t, 7, ext.Days)
	assert.True(t, ext.Notify)
	assert.Equal(t, MassExtendDays, action.ActionType())

	action, err = DecodeMassAction(MassResetTrial, nil)
	require.NoError(t, err)
	assert.Equal(t, MassResetTrial, action.ActionType())

	_, err = DecodeMassAction("drop_database", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = DecodeMassAction(MassAddBalance, json.RawMessage(`{"amount":"lots"}`))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestActor(t *testing.T) {
	assert.True(t, Admin().CanAccess(42))
	assert.True(t, SelfService(42).CanAccess(42))
	assert.False(t, SelfService(41).CanAccess(42))
	assert.False(t, SelfService(42).IsAdmin())
}

func TestOperatorIsSeparateFromAdminActor(t *testing.T) {
	op := Operator{ID: 1, Username: "root", PasswordHash: "hash"}
	actor := Admin()

	assert.Equal(t, "root", op.Username)
	assert.Equal(t, RoleAdmin, actor.Role)
	assert.Zero(t, actor.UserID)
}
