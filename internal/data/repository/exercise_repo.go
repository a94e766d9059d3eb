package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"provalab-api/internal/data/entity"
	"provalab-api/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ExerciseRepository interface {
	Create(ctx context.Context, exercise *entity.Exercise) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Exercise, error)
	List(ctx context.Context, filter entity.ExerciseFilter, limit int) ([]entity.Exercise, error)
	Count(ctx context.Context, filter entity.ExerciseFilter) (int, error)
	FindAtOffset(ctx context.Context, filter entity.ExerciseFilter, offset int) (*entity.Exercise, error)
}

type exerciseRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewExerciseRepository(db database.DBTX, log *zap.Logger) ExerciseRepository {
	return &exerciseRepository{
		db:  db,
		log: log.With(zap.String("repository", "exercise")),
	}
}

const exerciseColumns = `id, question, options, correct_answer, explanation, difficulty, subject, created_at`

func scanExercise(row pgx.Row) (*entity.Exercise, error) {
	var (
		e       entity.Exercise
		options []byte
	)
	err := row.Scan(
		&e.ID,
		&e.Question,
		&options,
		&e.CorrectAnswer,
		&e.Explanation,
		&e.Difficulty,
		&e.Subject,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !e.Difficulty.Valid() || !e.Subject.Valid() {
		return nil, fmt.Errorf("exercise %s: unknown difficulty %q or subject %q", e.ID, e.Difficulty, e.Subject)
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &e.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
	}
	return &e, nil
}

// whereFilter builds the WHERE clause for a filter, numbering placeholders
// from 1.
func whereFilter(filter entity.ExerciseFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Subject != "" {
		args = append(args, filter.Subject)
		conds = append(conds, fmt.Sprintf("subject = $%d", len(args)))
	}
	if filter.Difficulty != "" {
		args = append(args, filter.Difficulty)
		conds = append(conds, fmt.Sprintf("difficulty = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *exerciseRepository) Create(ctx context.Context, exercise *entity.Exercise) error {
	options := exercise.Options
	if options == nil {
		options = []string{}
	}
	encoded, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	query := `
		INSERT INTO exercises (id, question, options, correct_answer, explanation,
		                       difficulty, subject, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.Exec(ctx, query,
		exercise.ID,
		exercise.Question,
		encoded,
		exercise.CorrectAnswer,
		exercise.Explanation,
		exercise.Difficulty,
		exercise.Subject,
		exercise.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create exercise", zap.Error(err))
		return fmt.Errorf("create exercise: %w", err)
	}

	return nil
}

func (r *exerciseRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Exercise, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE id = $1`

	exercise, err := scanExercise(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find exercise", zap.Error(err), zap.String("exercise_id", id.String()))
		return nil, fmt.Errorf("find exercise %s: %w", id, err)
	}

	return exercise, nil
}

// List returns the newest exercises first.
func (r *exerciseRepository) List(ctx context.Context, filter entity.ExerciseFilter, limit int) ([]entity.Exercise, error) {
	where, args := whereFilter(filter)
	args = append(args, limit)
	query := `SELECT ` + exerciseColumns + ` FROM exercises` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list exercises", zap.Error(err))
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	exercises := make([]entity.Exercise, 0)
	for rows.Next() {
		exercise, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		exercises = append(exercises, *exercise)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}

	return exercises, nil
}

func (r *exerciseRepository) Count(ctx context.Context, filter entity.ExerciseFilter) (int, error) {
	where, args := whereFilter(filter)
	query := `SELECT COUNT(*) FROM exercises` + where

	var total int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		r.log.Error("Failed to count exercises", zap.Error(err))
		return 0, fmt.Errorf("count exercises: %w", err)
	}

	return total, nil
}

// FindAtOffset walks the filtered set in id order, giving a stable index for
// random picks.
func (r *exerciseRepository) FindAtOffset(ctx context.Context, filter entity.ExerciseFilter, offset int) (*entity.Exercise, error) {
	where, args := whereFilter(filter)
	args = append(args, offset)
	query := `SELECT ` + exerciseColumns + ` FROM exercises` + where +
		fmt.Sprintf(` ORDER BY id OFFSET $%d LIMIT 1`, len(args))

	exercise, err := scanExercise(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to pick exercise", zap.Error(err), zap.Int("offset", offset))
		return nil, fmt.Errorf("find exercise at offset %d: %w", offset, err)
	}

	return exercise, nil
}
