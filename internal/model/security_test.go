package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPasswordExpiryIsExpired(t *testing.T) {
	p := NewPasswordExpiry(uuid.New())

	assert.Equal(t, ExpiryStateExpired, p.State)
	assert.Nil(t, p.ExpiresAt)
	assert.True(t, p.IsExpired())
	assert.Equal(t, MinExpiryDate, p.ExpiryTimestamp())
}

func TestIsExpiredAtBoundaries(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	p := NewPasswordExpiry(uuid.New())

	tests := []struct {
		name    string
		expiry  time.Time
		expired bool
	}{
		{"min sentinel", MinExpiryDate, true},
		{"long ago", now.AddDate(-3, 0, 0), true},
		{"one nanosecond ago", now.Add(-time.Nanosecond), true},
		{"exactly now", now, true},
		{"one nanosecond ahead", now.Add(time.Nanosecond), false},
		{"next year", now.AddDate(1, 0, 0), false},
		{"max sentinel", MaxExpiryDate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.ExpireAt(tt.expiry)
			assert.Equal(t, tt.expired, p.IsExpiredAt(now))
		})
	}
}

func TestNeverExpire(t *testing.T) {
	p := NewPasswordExpiry(uuid.New())
	p.ExpireAt(time.Now().Add(-time.Hour))

	p.NeverExpire()

	assert.Equal(t, ExpiryStateNever, p.State)
	assert.Equal(t, MaxExpiryDate, p.ExpiryTimestamp())
	assert.False(t, p.IsExpired())
	assert.False(t, p.IsExpiredAt(MaxExpiryDate))
	assert.False(t, p.IsExpiredAt(MaxExpiryDate.Add(-time.Second)))
}

func TestExpireNowAfterNever(t *testing.T) {
	p := NewPasswordExpiry(uuid.New())
	p.NeverExpire()
	p.ExpireNow()

	assert.True(t, p.IsExpired())
	assert.Equal(t, MinExpiryDate, p.ExpiryTimestamp())
}

func TestExpiryFromTimestamp(t *testing.T) {
	state, at := ExpiryFromTimestamp(MinExpiryDate)
	assert.Equal(t, ExpiryStateExpired, state)
	assert.Nil(t, at)

	state, at = ExpiryFromTimestamp(MaxExpiryDate)
	assert.Equal(t, ExpiryStateNever, state)
	assert.Nil(t, at)

	local := time.Date(2027, 1, 2, 3, 4, 5, 0, time.FixedZone("UTC+2", 2*60*60))
	state, at = ExpiryFromTimestamp(local)
	assert.Equal(t, ExpiryStateScheduled, state)
	require.NotNil(t, at)
	assert.Equal(t, time.UTC, at.Location())
	assert.True(t, at.Equal(local))
}

func TestScheduledWithoutTimestampCountsAsExpired(t *testing.T) {
	p := &PasswordExpiry{State: ExpiryStateScheduled}
	assert.True(t, p.IsExpired())
	assert.Equal(t, MinExpiryDate, p.ExpiryTimestamp())
}

func TestUserPasswordExpiryTracked(t *testing.T) {
	userID := uuid.New()

	assert.False(t, UserPasswordExpiry{UserID: userID}.Tracked())
	assert.True(t, UserPasswordExpiry{UserID: userID, Record: NewPasswordExpiry(userID)}.Tracked())
}

func TestPasswordPolicyNextExpiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	assert.True(t, PasswordPolicy{}.NextExpiry(now).IsZero())
	assert.Equal(t, now.AddDate(0, 0, 90), PasswordPolicy{MaxAge: 90}.NextExpiry(now))
}
