package response

import (
	"time"

	"provalab-api/internal/data/entity"
)

type ExerciseResponse struct {
	ID            string            `json:"id"`
	Question      string            `json:"question"`
	Options       []string          `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   *string           `json:"explanation,omitempty"`
	Difficulty    entity.Difficulty `json:"difficulty"`
	Subject       entity.Subject    `json:"subject"`
	CreatedAt     time.Time         `json:"created_at"`
}

type AttemptResponse struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	ExerciseID       string            `json:"exercise_id"`
	UserAnswer       string            `json:"user_answer"`
	IsCorrect        bool              `json:"is_correct"`
	TimeSpentSeconds *int              `json:"time_spent_seconds,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	Exercise         *ExerciseResponse `json:"exercise,omitempty"`
}

type StatsResponse struct {
	Total    int `json:"total"`
	Correct  int `json:"correct"`
	Accuracy int `json:"accuracy"`
}

type ProgressResponse struct {
	Attempts []AttemptResponse `json:"attempts"`
	Stats    StatsResponse     `json:"stats"`
}

func ExerciseToResponse(e *entity.Exercise) ExerciseResponse {
	options := e.Options
	if options == nil {
		options = []string{}
	}
	return ExerciseResponse{
		ID:            e.ID.String(),
		Question:      e.Question,
		Options:       options,
		CorrectAnswer: e.CorrectAnswer,
		Explanation:   e.Explanation,
		Difficulty:    e.Difficulty,
		Subject:       e.Subject,
		CreatedAt:     e.CreatedAt,
	}
}

func ExercisesToResponse(list []entity.Exercise) []ExerciseResponse {
	out := make([]ExerciseResponse, 0, len(list))
	for i := range list {
		out = append(out, ExerciseToResponse(&list[i]))
	}
	return out
}

func AttemptToResponse(a *entity.Attempt) AttemptResponse {
	resp := AttemptResponse{
		ID:               a.ID.String(),
		UserID:           a.UserID.String(),
		ExerciseID:       a.ExerciseID.String(),
		UserAnswer:       a.UserAnswer,
		IsCorrect:        a.IsCorrect,
		TimeSpentSeconds: a.TimeSpentSeconds,
		CreatedAt:        a.CreatedAt,
	}
	if a.Exercise != nil {
		ex := ExerciseToResponse(a.Exercise)
		resp.Exercise = &ex
	}
	return resp
}

func AttemptsToResponse(list []entity.Attempt) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(list))
	for i := range list {
		out = append(out, AttemptToResponse(&list[i]))
	}
	return out
}

func StatsToResponse(s entity.AttemptStats) StatsResponse {
	return StatsResponse{Total: s.Total, Correct: s.Correct, Accuracy: s.Accuracy}
}
