// Package ratelimit enforces the hourly caps and cooldowns on verification
// and password-reset requests, counted per user and per source IP.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"provalab-api/pkg/apperr"

	"github.com/google/uuid"
)

type Kind string

const (
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

func (k Kind) Valid() bool {
	return k == KindEmailVerification || k == KindPasswordReset
}

const Window = time.Hour

// Policy is the limit for one kind of action. A zero Cooldown disables the
// cooldown gate.
type Policy struct {
	MaxPerHour int
	Cooldown   time.Duration
}

// Stats is what a Store knows about recent records for a user and an IP.
// IP fields are zero when no IP was given.
type Stats struct {
	UserCount  int
	IPCount    int
	Latest     *time.Time // most recent record by either key, any age
	OldestUser *time.Time // oldest record inside the window, by user
	OldestIP   *time.Time // oldest record inside the window, by IP
}

// Store supplies counts for the sliding window. Record is called after the
// limited action has been committed.
type Store interface {
	Stats(ctx context.Context, kind Kind, userID uuid.UUID, ip string, since time.Time) (Stats, error)
	Record(ctx context.Context, kind Kind, userID uuid.UUID, ip string, at time.Time) error
}

type Limiter struct {
	now func() time.Time
}

func New(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{now: now}
}

// Check fails with a RateLimited error when the hourly cap is reached for the
// user or the IP, or when the latest record is younger than the cooldown.
// Both gates are evaluated; the hourly cap is reported first.
func (l *Limiter) Check(ctx context.Context, store Store, kind Kind, userID uuid.UUID, ip string, policy Policy) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown rate limit kind %q", kind)
	}
	now := l.now()

	stats, err := store.Stats(ctx, kind, userID, ip, now.Add(-Window))
	if err != nil {
		return fmt.Errorf("rate limit stats for %s: %w", kind, err)
	}

	if policy.MaxPerHour > 0 {
		if stats.UserCount >= policy.MaxPerHour {
			return apperr.RateLimited(capMessage(kind), untilAgedOut(now, stats.OldestUser))
		}
		if ip != "" && stats.IPCount >= policy.MaxPerHour {
			return apperr.RateLimited("Too many requests from this network. Try again later", untilAgedOut(now, stats.OldestIP))
		}
	}

	if policy.Cooldown > 0 && stats.Latest != nil {
		elapsed := now.Sub(*stats.Latest)
		if elapsed < policy.Cooldown {
			return apperr.RateLimited("Please wait before requesting a new code", policy.Cooldown-elapsed)
		}
	}

	return nil
}

func capMessage(kind Kind) string {
	switch kind {
	case KindEmailVerification:
		return "Too many verification codes requested. Try again later"
	case KindPasswordReset:
		return "Too many password reset requests. Try again later"
	default:
		return "Too many requests. Try again later"
	}
}

func untilAgedOut(now time.Time, oldest *time.Time) time.Duration {
	if oldest == nil {
		return 0
	}
	d := oldest.Add(Window).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
