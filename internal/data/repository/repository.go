package repository

import (
	"context"

	"provalab-api/pkg/database"
	"provalab-api/pkg/ratelimit"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Repository groups every repository bound to one database handle, either
// the pool or an open transaction.
type Repository struct {
	User             UserRepository
	Profile          ProfileRepository
	PlanProfile      PlanProfileRepository
	VerificationCode VerificationCodeRepository
	PasswordReset    PasswordResetRepository
	Exercise         ExerciseRepository
	Attempt          AttemptRepository
	AttemptLog       ratelimit.Store
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() *Repository
	WithTx(ctx context.Context, fn func(ctx context.Context, repos *Repository) error) error
	Ping(ctx context.Context) error
}

func NewRepository(db database.DBTX, log *zap.Logger) *Repository {
	return &Repository{
		User:             NewUserRepository(db, log),
		Profile:          NewProfileRepository(db, log),
		PlanProfile:      NewPlanProfileRepository(db, log),
		VerificationCode: NewVerificationCodeRepository(db, log),
		PasswordReset:    NewPasswordResetRepository(db, log),
		Exercise:         NewExerciseRepository(db, log),
		Attempt:          NewAttemptRepository(db, log),
		AttemptLog:       NewAttemptLogRepository(db, log),
	}
}

type postgresStore struct {
	db    database.PgxIface
	repos *Repository
	log   *zap.Logger
}

func NewPostgresStore(db database.PgxIface, log *zap.Logger) Store {
	return &postgresStore{
		db:    db,
		repos: NewRepository(db, log),
		log:   log,
	}
}

func (s *postgresStore) Repos() *Repository {
	return s.repos
}

func (s *postgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos *Repository) error) error {
	return database.WithTx(ctx, s.db, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewRepository(tx, s.log))
	})
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
