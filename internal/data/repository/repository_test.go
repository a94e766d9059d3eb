package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"provalab-api/internal/data/entity"
	"provalab-api/pkg/ratelimit"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRow copies values into the scan targets in order. A nil value leaves
// the target at its zero value.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d targets for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if r.values[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type fakeDB struct {
	row     fakeRow
	tag     pgconn.CommandTag
	execErr error

	queries []string
	args    [][]any
}

func (d *fakeDB) record(sql string, args []any) {
	d.queries = append(d.queries, sql)
	d.args = append(d.args, args)
}

func (d *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.record(sql, args)
	return nil, errors.New("query not scripted")
}

func (d *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	d.record(sql, args)
	return d.row
}

func (d *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.record(sql, args)
	return d.tag, d.execErr
}

func (d *fakeDB) lastQuery(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, d.queries)
	return d.queries[len(d.queries)-1]
}

func TestAttemptLogStats(t *testing.T) {
	latest := time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC)
	oldest := latest.Add(-30 * time.Minute)
	since := latest.Add(-time.Hour)
	userID := uuid.New()

	tests := []struct {
		name   string
		kind   ratelimit.Kind
		ip     string
		table  string
		wantIP *string
	}{
		{"reset with ip", ratelimit.KindPasswordReset, "10.0.0.1", "FROM password_reset_tokens", ptr("10.0.0.1")},
		{"verification without ip", ratelimit.KindEmailVerification, "", "FROM email_verification_codes", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{row: fakeRow{values: []any{3, 2, &latest, &oldest, nil}}}
			store := NewAttemptLogRepository(db, zap.NewNop())

			stats, err := store.Stats(context.Background(), tt.kind, userID, tt.ip, since)
			require.NoError(t, err)

			query := db.lastQuery(t)
			assert.Contains(t, query, tt.table)
			assert.Contains(t, query, "COUNT(*) FILTER (WHERE user_id = $1 AND created_at >= $2)")
			assert.Contains(t, query, "COUNT(*) FILTER (WHERE request_ip = $3 AND created_at >= $2)")

			args := db.args[0]
			require.Len(t, args, 3)
			assert.Equal(t, userID, args[0])
			assert.Equal(t, since, args[1])
			assert.Equal(t, tt.wantIP, args[2])

			assert.Equal(t, 3, stats.UserCount)
			assert.Equal(t, 2, stats.IPCount)
			assert.Equal(t, &latest, stats.Latest)
			assert.Equal(t, &oldest, stats.OldestUser)
			assert.Nil(t, stats.OldestIP)
		})
	}
}

func TestAttemptLogStatsUnknownKind(t *testing.T) {
	db := &fakeDB{}
	_, err := NewAttemptLogRepository(db, zap.NewNop()).Stats(context.Background(), ratelimit.Kind("sms"), uuid.New(), "", time.Now())
	require.Error(t, err)
	assert.Empty(t, db.queries)
}

func TestPlanProfileCreateIgnoresConflict(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 0")}
	repo := NewPlanProfileRepository(db, zap.NewNop())

	err := repo.Create(context.Background(), &entity.PlanProfile{Plan: entity.PlanFree, FreeUses: 5})
	require.NoError(t, err)
	assert.Contains(t, db.lastQuery(t), "ON CONFLICT (id) DO NOTHING")
}

func TestPlanProfileFind(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	row := fakeRow{values: []any{id, "ana@example.com", entity.PlanFree, 5, 2, nil, now, now}}

	t.Run("plain read", func(t *testing.T) {
		db := &fakeDB{row: row}
		plan, err := NewPlanProfileRepository(db, zap.NewNop()).FindByUserID(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, plan)
		assert.Equal(t, 2, plan.UsesCount)
		assert.NotContains(t, db.lastQuery(t), "FOR UPDATE")
	})

	t.Run("locked read", func(t *testing.T) {
		db := &fakeDB{row: row}
		_, err := NewPlanProfileRepository(db, zap.NewNop()).FindByUserIDForUpdate(context.Background(), id)
		require.NoError(t, err)
		assert.Contains(t, db.lastQuery(t), "FOR UPDATE")
	})

	t.Run("missing", func(t *testing.T) {
		db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
		plan, err := NewPlanProfileRepository(db, zap.NewNop()).FindByUserID(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, plan)
	})

	t.Run("unknown plan value", func(t *testing.T) {
		db := &fakeDB{row: fakeRow{values: []any{id, "ana@example.com", entity.Plan("gold"), 5, 2, nil, now, now}}}
		_, err := NewPlanProfileRepository(db, zap.NewNop()).FindByUserID(context.Background(), id)
		assert.Error(t, err)
	})
}

func TestPlanProfileUpdateMissingRow(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
	err := NewPlanProfileRepository(db, zap.NewNop()).Update(context.Background(), &entity.PlanProfile{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlanProfileIncrementUses(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{4}}}
	count, err := NewPlanProfileRepository(db, zap.NewNop()).IncrementUses(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Contains(t, db.lastQuery(t), "uses_count = uses_count + 1")

	db = &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	_, err = NewPlanProfileRepository(db, zap.NewNop()).IncrementUses(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserCreateDuplicate(t *testing.T) {
	db := &fakeDB{execErr: &pgconn.PgError{Code: pgUniqueViolation}}
	err := NewUserRepository(db, zap.NewNop()).Create(context.Background(), &entity.User{Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	boom := errors.New("connection reset")
	db = &fakeDB{execErr: boom}
	err = NewUserRepository(db, zap.NewNop()).Create(context.Background(), &entity.User{Email: "ana@example.com"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicate)
}

func TestUserLookups(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	repo := NewUserRepository(db, zap.NewNop())

	user, err := repo.FindByIDForUpdate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Contains(t, db.lastQuery(t), "FOR UPDATE")

	_, err = repo.FindByEmail(context.Background(), "Ana@Example.com")
	require.NoError(t, err)
	assert.Contains(t, db.lastQuery(t), "LOWER(email) = LOWER($1)")
}

func TestVerificationCodeLocksAndCounts(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	repo := NewVerificationCodeRepository(db, zap.NewNop())

	code, err := repo.FindForUpdate(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, code)
	assert.Contains(t, db.lastQuery(t), "FOR UPDATE")

	_, err = repo.IncrementAttempts(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	db = &fakeDB{tag: pgconn.NewCommandTag("UPDATE 2")}
	n, err := NewVerificationCodeRepository(db, zap.NewNop()).InvalidateActive(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, db.lastQuery(t), "consumed_at IS NULL")
}

func TestPasswordResetLocksToken(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	token, err := NewPasswordResetRepository(db, zap.NewNop()).FindByHashForUpdate(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.Contains(t, db.lastQuery(t), "FOR UPDATE")
	assert.Equal(t, []any{"abc"}, db.args[0])
}

func ptr[T any](v T) *T { return &v }
