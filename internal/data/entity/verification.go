package entity

import (
	"time"

	"github.com/google/uuid"
)

// VerificationCode stores the keyed hash of a 6-digit email code. A code is
// usable until it is consumed, expires, or runs out of attempts.
type VerificationCode struct {
	BaseSimple
	UserID        uuid.UUID  `db:"user_id"`
	CodeHash      string     `db:"code_hash"`
	RequestIP     *string    `db:"request_ip"`
	AttemptsCount int        `db:"attempts_count"`
	ExpiresAt     time.Time  `db:"expires_at"`
	ConsumedAt    *time.Time `db:"consumed_at"`
}

func (c *VerificationCode) IsConsumed() bool {
	return c.ConsumedAt != nil
}

func (c *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func (c *VerificationCode) IsExhausted(maxAttempts int) bool {
	return c.AttemptsCount >= maxAttempts
}

// Usable reports whether the code can still be redeemed.
func (c *VerificationCode) Usable(now time.Time, maxAttempts int) bool {
	return !c.IsConsumed() && !c.IsExpired(now) && !c.IsExhausted(maxAttempts)
}

type PasswordResetToken struct {
	BaseSimple
	UserID    uuid.UUID  `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	RequestIP *string    `db:"request_ip"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
}

func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
