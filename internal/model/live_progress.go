package model

// LiveProgress is a participant's in-flight attempt state, assembled for the
// teacher's monitor. Valid while the session is IN_PROGRESS; frozen to the
// result record once the student submits.
type LiveProgress struct {
	StudentID         int     `json:"student_id"`
	DisplayName       string  `json:"display_name"`
	AvatarURL         string  `json:"avatar_url,omitempty"`
	QuestionsAnswered int     `json:"questions_answered"`
	TotalQuestions    int     `json:"total_questions"`
	CurrentScore      float64 `json:"current_score"`
	TimeSpentSeconds  int64   `json:"time_spent_seconds"`
	Submitted         bool    `json:"submitted"`
}
