package request

type CreateExerciseRequest struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options,omitempty" validate:"omitempty,dive,required"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
	Explanation   *string  `json:"explanation,omitempty"`
	Difficulty    string   `json:"difficulty" validate:"required,oneof=easy medium hard"`
	Subject       string   `json:"subject" validate:"required,oneof=algebra geometry calculus statistics trigonometry arithmetic"`
}

// IsCorrect is a pointer so that false still passes "required".
type CreateAttemptRequest struct {
	ExerciseID       string `json:"exercise_id" validate:"required,uuid"`
	UserAnswer       string `json:"user_answer" validate:"required"`
	IsCorrect        *bool  `json:"is_correct" validate:"required"`
	TimeSpentSeconds *int   `json:"time_spent_seconds,omitempty" validate:"omitempty,gte=0"`
}
