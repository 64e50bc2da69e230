package model

import (
	"time"

	"github.com/google/uuid"
)

// ExpiryState is the stored tag for a password expiry record.
type ExpiryState string

// Expiry states
const (
	ExpiryStateExpired   ExpiryState = "expired"
	ExpiryStateScheduled ExpiryState = "scheduled"
	ExpiryStateNever     ExpiryState = "never"
)

// Sentinel timestamps reported by ExpiryTimestamp for the expired and never states.
var (
	MinExpiryDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxExpiryDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// PasswordExpiry associates a password expiry with a user. A freshly created
// record is expired, which forces the user to change the initial password.
type PasswordExpiry struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	UserID    uuid.UUID   `json:"user_id" db:"user_id"`
	State     ExpiryState `json:"expiry_state" db:"expiry_state"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// NewPasswordExpiry returns an unsaved record for userID in the expired state.
func NewPasswordExpiry(userID uuid.UUID) *PasswordExpiry {
	now := time.Now().UTC()
	return &PasswordExpiry{
		ID:        uuid.New(),
		UserID:    userID,
		State:     ExpiryStateExpired,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ExpiryFromTimestamp maps a raw expiry timestamp onto a state. The min and max
// sentinels become expired and never; anything else is scheduled.
func ExpiryFromTimestamp(t time.Time) (ExpiryState, *time.Time) {
	t = t.UTC()
	switch {
	case !t.After(MinExpiryDate):
		return ExpiryStateExpired, nil
	case !t.Before(MaxExpiryDate):
		return ExpiryStateNever, nil
	}
	return ExpiryStateScheduled, &t
}

// IsExpired reports whether the password must be changed now.
func (p *PasswordExpiry) IsExpired() bool {
	return p.IsExpiredAt(time.Now().UTC())
}

// IsExpiredAt reports whether the expiry is at or before now.
func (p *PasswordExpiry) IsExpiredAt(now time.Time) bool {
	switch p.State {
	case ExpiryStateNever:
		return false
	case ExpiryStateScheduled:
		if p.ExpiresAt == nil {
			return true
		}
		return !p.ExpiresAt.After(now)
	}
	return true
}

// ExpiryTimestamp returns the effective expiry instant in UTC.
func (p *PasswordExpiry) ExpiryTimestamp() time.Time {
	switch p.State {
	case ExpiryStateNever:
		return MaxExpiryDate
	case ExpiryStateScheduled:
		if p.ExpiresAt != nil {
			return p.ExpiresAt.UTC()
		}
	}
	return MinExpiryDate
}

// NeverExpire moves the record to the never state. It does not persist.
func (p *PasswordExpiry) NeverExpire() {
	p.State = ExpiryStateNever
	p.ExpiresAt = nil
	p.touch()
}

// ExpireNow moves the record back to the expired state.
func (p *PasswordExpiry) ExpireNow() {
	p.State = ExpiryStateExpired
	p.ExpiresAt = nil
	p.touch()
}

// ExpireAt schedules expiry at t.
func (p *PasswordExpiry) ExpireAt(t time.Time) {
	p.State, p.ExpiresAt = ExpiryFromTimestamp(t)
	p.touch()
}

func (p *PasswordExpiry) touch() {
	p.UpdatedAt = time.Now().UTC()
}

// UserPasswordExpiry is the zero-or-one association between a user and an
// expiry record. A nil Record means no expiry is tracked for the user yet.
type UserPasswordExpiry struct {
	UserID uuid.UUID       `json:"user_id"`
	Record *PasswordExpiry `json:"record,omitempty"`
}

// Tracked reports whether the user has an expiry record.
func (u UserPasswordExpiry) Tracked() bool {
	return u.Record != nil
}

// PasswordPolicy controls how the next expiry is chosen after a password change.
type PasswordPolicy struct {
	MaxAge int `json:"max_age_days"` // Password expiry in days, 0 disables periodic expiry
}

// NextExpiry returns the expiry to apply to a password changed at now. A zero
// time means the password never expires.
func (p PasswordPolicy) NextExpiry(now time.Time) time.Time {
	if p.MaxAge <= 0 {
		return time.Time{}
	}
	return now.UTC().AddDate(0, 0, p.MaxAge)
}
