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

type PlanProfileRepository interface {
	Create(ctx context.Context, plan *entity.PlanProfile) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.PlanProfile, error)
	FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*entity.PlanProfile, error)
	Update(ctx context.Context, plan *entity.PlanProfile) error
	IncrementUses(ctx context.Context, userID uuid.UUID, at time.Time) (int, error)
}

type planProfileRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewPlanProfileRepository(db database.DBTX, log *zap.Logger) PlanProfileRepository {
	return &planProfileRepository{
		db:  db,
		log: log.With(zap.String("repository", "plan_profile")),
	}
}

// Create is a no-op when the plan row already exists, so concurrent lazy
// creation is safe.
func (r *planProfileRepository) Create(ctx context.Context, plan *entity.PlanProfile) error {
	query := `
		INSERT INTO plan_profiles (id, email, plan, free_uses, uses_count,
		                           hotmart_purchase_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		plan.ID,
		plan.Email,
		plan.Plan,
		plan.FreeUses,
		plan.UsesCount,
		plan.PurchaseID,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create plan profile", zap.Error(err), zap.String("user_id", plan.ID.String()))
		return fmt.Errorf("create plan profile %s: %w", plan.ID, err)
	}

	return nil
}

func (r *planProfileRepository) find(ctx context.Context, userID uuid.UUID, lock bool) (*entity.PlanProfile, error) {
	query := `
		SELECT id, email, plan, free_uses, uses_count, hotmart_purchase_id,
		       created_at, updated_at
		FROM plan_profiles
		WHERE id = $1
	`
	if lock {
		query += ` FOR UPDATE`
	}

	var p entity.PlanProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.Email,
		&p.Plan,
		&p.FreeUses,
		&p.UsesCount,
		&p.PurchaseID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find plan profile", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("find plan profile %s: %w", userID, err)
	}
	if !p.Plan.Valid() {
		return nil, fmt.Errorf("plan profile %s: unknown plan %q", userID, p.Plan)
	}

	return &p, nil
}

func (r *planProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entity.PlanProfile, error) {
	return r.find(ctx, userID, false)
}

func (r *planProfileRepository) FindByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*entity.PlanProfile, error) {
	return r.find(ctx, userID, true)
}

func (r *planProfileRepository) Update(ctx context.Context, plan *entity.PlanProfile) error {
	query := `
		UPDATE plan_profiles
		SET email = $2, plan = $3, free_uses = $4, uses_count = $5,
		    hotmart_purchase_id = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		plan.ID,
		plan.Email,
		plan.Plan,
		plan.FreeUses,
		plan.UsesCount,
		plan.PurchaseID,
		plan.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update plan profile", zap.Error(err), zap.String("user_id", plan.ID.String()))
		return fmt.Errorf("update plan profile %s: %w", plan.ID, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// IncrementUses bumps uses_count in place and returns the new value.
func (r *planProfileRepository) IncrementUses(ctx context.Context, userID uuid.UUID, at time.Time) (int, error) {
	query := `
		UPDATE plan_profiles
		SET uses_count = uses_count + 1, updated_at = $2
		WHERE id = $1
		RETURNING uses_count
	`

	var count int
	err := r.db.QueryRow(ctx, query, userID, at).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		r.log.Error("Failed to increment uses", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("increment uses for %s: %w", userID, err)
	}

	return count, nil
}
