package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"provalab-api/internal/data/entity"
	"provalab-api/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AttemptRepository interface {
	Create(ctx context.Context, attempt *entity.Attempt) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.Attempt, error)
	Stats(ctx context.Context, userID uuid.UUID) (entity.AttemptStats, error)
}

type attemptRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewAttemptRepository(db database.DBTX, log *zap.Logger) AttemptRepository {
	return &attemptRepository{
		db:  db,
		log: log.With(zap.String("repository", "attempt")),
	}
}

func (r *attemptRepository) Create(ctx context.Context, attempt *entity.Attempt) error {
	query := `
		INSERT INTO exercise_attempts (id, user_id, exercise_id, user_answer,
		                               is_correct, time_spent_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		attempt.ID,
		attempt.UserID,
		attempt.ExerciseID,
		attempt.UserAnswer,
		attempt.IsCorrect,
		attempt.TimeSpentSeconds,
		attempt.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create attempt", zap.Error(err), zap.String("user_id", attempt.UserID.String()))
		return fmt.Errorf("create attempt for %s: %w", attempt.UserID, err)
	}

	return nil
}

// ListByUser returns the newest attempts first, each with its exercise.
func (r *attemptRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.Attempt, error) {
	query := `
		SELECT a.id, a.user_id, a.exercise_id, a.user_answer, a.is_correct,
		       a.time_spent_seconds, a.created_at,
		       e.id, e.question, e.options, e.correct_answer, e.explanation,
		       e.difficulty, e.subject, e.created_at
		FROM exercise_attempts a
		JOIN exercises e ON e.id = a.exercise_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.log.Error("Failed to list attempts", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("list attempts for %s: %w", userID, err)
	}
	defer rows.Close()

	attempts := make([]entity.Attempt, 0)
	for rows.Next() {
		var (
			a       entity.Attempt
			e       entity.Exercise
			options []byte
		)
		err := rows.Scan(
			&a.ID, &a.UserID, &a.ExerciseID, &a.UserAnswer, &a.IsCorrect,
			&a.TimeSpentSeconds, &a.CreatedAt,
			&e.ID, &e.Question, &options, &e.CorrectAnswer, &e.Explanation,
			&e.Difficulty, &e.Subject, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &e.Options); err != nil {
				return nil, fmt.Errorf("decode options: %w", err)
			}
		}
		a.Exercise = &e
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	return attempts, nil
}

func (r *attemptRepository) Stats(ctx context.Context, userID uuid.UUID) (entity.AttemptStats, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_correct)
		FROM exercise_attempts
		WHERE user_id = $1
	`

	var stats entity.AttemptStats
	if err := r.db.QueryRow(ctx, query, userID).Scan(&stats.Total, &stats.Correct); err != nil {
		r.log.Error("Failed to compute stats", zap.Error(err), zap.String("user_id", userID.String()))
		return stats, fmt.Errorf("attempt stats for %s: %w", userID, err)
	}
	stats.Accuracy = entity.Accuracy(stats.Total, stats.Correct)

	return stats, nil
}
