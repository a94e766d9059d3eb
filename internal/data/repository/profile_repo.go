package repository

import (
	"context"
	"errors"
	"fmt"

	"provalab-api/internal/data/entity"
	"provalab-api/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *entity.Profile) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error)
	Update(ctx context.Context, profile *entity.Profile) error
}

type profileRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewProfileRepository(db database.DBTX, log *zap.Logger) ProfileRepository {
	return &profileRepository{
		db:  db,
		log: log.With(zap.String("repository", "profile")),
	}
}

// Create is a no-op when the user already has a profile.
func (r *profileRepository) Create(ctx context.Context, profile *entity.Profile) error {
	query := `
		INSERT INTO profiles (id, user_id, full_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		profile.ID,
		profile.UserID,
		profile.FullName,
		profile.AvatarURL,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create profile", zap.Error(err), zap.String("user_id", profile.UserID.String()))
		return fmt.Errorf("create profile for %s: %w", profile.UserID, err)
	}

	return nil
}

func (r *profileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	query := `
		SELECT id, user_id, full_name, avatar_url, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	var p entity.Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.FullName,
		&p.AvatarURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find profile", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("find profile for %s: %w", userID, err)
	}

	return &p, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *entity.Profile) error {
	query := `
		UPDATE profiles
		SET full_name = $2, avatar_url = $3, updated_at = $4
		WHERE user_id = $1
	`

	result, err := r.db.Exec(ctx, query,
		profile.UserID,
		profile.FullName,
		profile.AvatarURL,
		profile.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update profile", zap.Error(err), zap.String("user_id", profile.UserID.String()))
		return fmt.Errorf("update profile for %s: %w", profile.UserID, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
