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

type PasswordResetRepository interface {
	Create(ctx context.Context, token *entity.PasswordResetToken) error
	FindByHashForUpdate(ctx context.Context, hash string) (*entity.PasswordResetToken, error)
	InvalidateActive(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

type passwordResetRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewPasswordResetRepository(db database.DBTX, log *zap.Logger) PasswordResetRepository {
	return &passwordResetRepository{
		db:  db,
		log: log.With(zap.String("repository", "password_reset")),
	}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *entity.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, request_ip,
		                                   expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.RequestIP,
		token.ExpiresAt,
		token.UsedAt,
		token.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create reset token", zap.Error(err), zap.String("user_id", token.UserID.String()))
		return fmt.Errorf("create reset token for %s: %w", token.UserID, err)
	}

	return nil
}

// FindByHashForUpdate returns the token whatever its state; callers decide
// whether it is still usable.
func (r *passwordResetRepository) FindByHashForUpdate(ctx context.Context, hash string) (*entity.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, request_ip, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`

	var t entity.PasswordResetToken
	err := r.db.QueryRow(ctx, query, hash).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.RequestIP,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find reset token", zap.Error(err))
		return nil, fmt.Errorf("find reset token: %w", err)
	}

	return &t, nil
}

func (r *passwordResetRepository) InvalidateActive(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	query := `
		UPDATE password_reset_tokens
		SET used_at = $2
		WHERE user_id = $1 AND used_at IS NULL
	`

	result, err := r.db.Exec(ctx, query, userID, at)
	if err != nil {
		r.log.Error("Failed to invalidate reset tokens", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("invalidate reset tokens for %s: %w", userID, err)
	}

	return result.RowsAffected(), nil
}
