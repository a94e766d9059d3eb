package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"provalab-api/internal/data/entity"
	"provalab-api/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type VerificationCodeRepository interface {
	Create(ctx context.Context, code *entity.VerificationCode) error
	FindForUpdate(ctx context.Context, id, userID uuid.UUID) (*entity.VerificationCode, error)
	InvalidateActive(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type verificationCodeRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewVerificationCodeRepository(db database.DBTX, log *zap.Logger) VerificationCodeRepository {
	return &verificationCodeRepository{
		db:  db,
		log: log.With(zap.String("repository", "verification_code")),
	}
}

func (r *verificationCodeRepository) Create(ctx context.Context, code *entity.VerificationCode) error {
	query := `
		INSERT INTO email_verification_codes (id, user_id, code_hash, request_ip,
		                                      attempts_count, expires_at, consumed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		code.ID,
		code.UserID,
		code.CodeHash,
		code.RequestIP,
		code.AttemptsCount,
		code.ExpiresAt,
		code.ConsumedAt,
		code.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create verification code", zap.Error(err), zap.String("user_id", code.UserID.String()))
		return fmt.Errorf("create verification code for %s: %w", code.UserID, err)
	}

	return nil
}

// FindForUpdate loads a code owned by userID and locks it.
func (r *verificationCodeRepository) FindForUpdate(ctx context.Context, id, userID uuid.UUID) (*entity.VerificationCode, error) {
	query := `
		SELECT id, user_id, code_hash, request_ip, attempts_count,
		       expires_at, consumed_at, created_at
		FROM email_verification_codes
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`

	var c entity.VerificationCode
	err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.CodeHash,
		&c.RequestIP,
		&c.AttemptsCount,
		&c.ExpiresAt,
		&c.ConsumedAt,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find verification code", zap.Error(err), zap.String("code_id", id.String()))
		return nil, fmt.Errorf("find verification code %s: %w", id, err)
	}

	return &c, nil
}

// InvalidateActive consumes every unconsumed code of the user.
func (r *verificationCodeRepository) InvalidateActive(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	query := `
		UPDATE email_verification_codes
		SET consumed_at = $2
		WHERE user_id = $1 AND consumed_at IS NULL
	`

	result, err := r.db.Exec(ctx, query, userID, at)
	if err != nil {
		r.log.Error("Failed to invalidate codes", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("invalidate codes for %s: %w", userID, err)
	}

	return result.RowsAffected(), nil
}

func (r *verificationCodeRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE email_verification_codes
		SET attempts_count = attempts_count + 1
		WHERE id = $1
		RETURNING attempts_count
	`

	var attempts int
	err := r.db.QueryRow(ctx, query, id).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		r.log.Error("Failed to increment attempts", zap.Error(err), zap.String("code_id", id.String()))
		return 0, fmt.Errorf("increment attempts for %s: %w", id, err)
	}

	return attempts, nil
}

func (r *verificationCodeRepository) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE email_verification_codes SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`

	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		r.log.Error("Failed to consume code", zap.Error(err), zap.String("code_id", id.String()))
		return fmt.Errorf("consume code %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
