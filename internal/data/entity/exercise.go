package entity

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
	return d, nil
}

type Subject string

const (
	SubjectAlgebra      Subject = "algebra"
	SubjectGeometry     Subject = "geometry"
	SubjectCalculus     Subject = "calculus"
	SubjectStatistics   Subject = "statistics"
	SubjectTrigonometry Subject = "trigonometry"
	SubjectArithmetic   Subject = "arithmetic"
)

func (s Subject) Valid() bool {
	switch s {
	case SubjectAlgebra, SubjectGeometry, SubjectCalculus,
		SubjectStatistics, SubjectTrigonometry, SubjectArithmetic:
		return true
	default:
		return false
	}
}

func ParseSubject(s string) (Subject, error) {
	sub := Subject(strings.ToLower(strings.TrimSpace(s)))
	if !sub.Valid() {
		return "", fmt.Errorf("unknown subject %q", s)
	}
	return sub, nil
}

type Exercise struct {
	BaseSimple
	Question      string     `db:"question"`
	Options       []string   `db:"options"`
	CorrectAnswer string     `db:"correct_answer"`
	Explanation   *string    `db:"explanation"`
	Difficulty    Difficulty `db:"difficulty"`
	Subject       Subject    `db:"subject"`
}

// ExerciseFilter leaves a field unset (empty) to match any value.
type ExerciseFilter struct {
	Subject    Subject
	Difficulty Difficulty
}

type Attempt struct {
	BaseSimple
	UserID           uuid.UUID `db:"user_id"`
	ExerciseID       uuid.UUID `db:"exercise_id"`
	UserAnswer       string    `db:"user_answer"`
	IsCorrect        bool      `db:"is_correct"`
	TimeSpentSeconds *int      `db:"time_spent_seconds"`

	// populated by list queries that join exercises
	Exercise *Exercise `db:"-"`
}

type AttemptStats struct {
	Total    int
	Correct  int
	Accuracy int
}

// Accuracy is the rounded share of correct attempts, in percent.
func Accuracy(total, correct int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
