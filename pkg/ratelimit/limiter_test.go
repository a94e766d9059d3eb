package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"provalab-api/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	StatsFunc  func(ctx context.Context, kind Kind, userID uuid.UUID, ip string, since time.Time) (Stats, error)
	RecordFunc func(ctx context.Context, kind Kind, userID uuid.UUID, ip string, at time.Time) error
}

func (m *mockStore) Stats(ctx context.Context, kind Kind, userID uuid.UUID, ip string, since time.Time) (Stats, error) {
	return m.StatsFunc(ctx, kind, userID, ip, since)
}

func (m *mockStore) Record(ctx context.Context, kind Kind, userID uuid.UUID, ip string, at time.Time) error {
	if m.RecordFunc == nil {
		return nil
	}
	return m.RecordFunc(ctx, kind, userID, ip, at)
}

func ptr(t time.Time) *time.Time { return &t }

func TestLimiterCheck(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	policy := Policy{MaxPerHour: 5, Cooldown: 60 * time.Second}

	tests := []struct {
		name      string
		ip        string
		stats     Stats
		wantErr   bool
		wantRetry time.Duration
	}{
		{
			name:  "no history",
			ip:    "10.0.0.1",
			stats: Stats{},
		},
		{
			name:  "under cap and past cooldown",
			ip:    "10.0.0.1",
			stats: Stats{UserCount: 4, IPCount: 4, Latest: ptr(now.Add(-2 * time.Minute))},
		},
		{
			name:      "user cap reached",
			ip:        "10.0.0.1",
			stats:     Stats{UserCount: 5, OldestUser: ptr(now.Add(-40 * time.Minute)), Latest: ptr(now.Add(-10 * time.Minute))},
			wantErr:   true,
			wantRetry: 20 * time.Minute,
		},
		{
			name:      "ip cap reached",
			ip:        "10.0.0.1",
			stats:     Stats{UserCount: 1, IPCount: 5, OldestIP: ptr(now.Add(-59 * time.Minute)), Latest: ptr(now.Add(-10 * time.Minute))},
			wantErr:   true,
			wantRetry: time.Minute,
		},
		{
			name:  "ip count ignored without ip",
			ip:    "",
			stats: Stats{UserCount: 1, IPCount: 9},
		},
		{
			name:      "inside cooldown",
			ip:        "10.0.0.1",
			stats:     Stats{UserCount: 1, Latest: ptr(now.Add(-15 * time.Second))},
			wantErr:   true,
			wantRetry: 45 * time.Second,
		},
		{
			name:  "cooldown exactly elapsed",
			ip:    "10.0.0.1",
			stats: Stats{UserCount: 1, Latest: ptr(now.Add(-60 * time.Second))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{
				StatsFunc: func(ctx context.Context, kind Kind, userID uuid.UUID, ip string, since time.Time) (Stats, error) {
					assert.Equal(t, now.Add(-time.Hour), since)
					return tt.stats, nil
				},
			}

			err := New(func() time.Time { return now }).Check(context.Background(), store, KindEmailVerification, uuid.New(), tt.ip, policy)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindRateLimited, e.Kind)
			assert.Equal(t, tt.wantRetry, e.RetryAfter)
		})
	}
}

func TestLimiterCheckZeroCooldown(t *testing.T) {
	now := time.Now()
	store := &mockStore{
		StatsFunc: func(ctx context.Context, kind Kind, userID uuid.UUID, ip string, since time.Time) (Stats, error) {
			return Stats{UserCount: 1, Latest: ptr(now)}, nil
		},
	}

	err := New(func() time.Time { return now }).Check(context.Background(), store, KindPasswordReset, uuid.New(), "", Policy{MaxPerHour: 5})
	require.NoError(t, err)
}

func TestLimiterCheckStoreError(t *testing.T) {
	store := &mockStore{
		StatsFunc: func(ctx context.Context, kind Kind, userID uuid.UUID, ip string, since time.Time) (Stats, error) {
			return Stats{}, errors.New("db down")
		},
	}

	err := New(nil).Check(context.Background(), store, KindPasswordReset, uuid.New(), "", Policy{MaxPerHour: 5})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestLimiterCheckUnknownKind(t *testing.T) {
	store := &mockStore{
		StatsFunc: func(ctx context.Context, kind Kind, userID uuid.UUID, ip string, since time.Time) (Stats, error) {
			t.Fatal("stats must not be read for an unknown kind")
			return Stats{}, nil
		},
	}

	err := New(nil).Check(context.Background(), store, Kind("sms"), uuid.New(), "", Policy{MaxPerHour: 5})
	require.Error(t, err)
	assert.False(t, Kind("sms").Valid())
}
