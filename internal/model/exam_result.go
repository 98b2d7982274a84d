package model

import (
	"time"

	"github.com/google/uuid"
)

// AnsweredQuestion records one graded answer inside a result.
type AnsweredQuestion struct {
	QuestionID      uuid.UUID `json:"question_id"`
	AnswerOptionIDs []string  `json:"answer_option_ids"`
	IsCorrect       bool      `json:"is_correct"`
}

// ExamResult is the single immutable result of one student's attempt.
// At most one row exists per (session, student) for live sessions; the
// unique index in PostgreSQL is the enforcement point.
type ExamResult struct {
	ID               uuid.UUID          `json:"id"`
	SessionID        uuid.UUID          `json:"session_id"`
	StudentID        int                `json:"student_id"`
	Score            float64            `json:"score"`
	CorrectCount     int                `json:"correct_count"`
	TotalQuestions   int                `json:"total_questions"`
	TimeSpentSeconds int64              `json:"time_spent_seconds"`
	AttemptNumber    int                `json:"attempt_number"`
	IsAutoSubmit     bool               `json:"is_auto_submit"`
	Answers          []AnsweredQuestion `json:"answers"`
	SubmittedAt      time.Time          `json:"submitted_at"`
}

// SubmittedAnswer is one answer inside a submit payload.
type SubmittedAnswer struct {
	QuestionID      uuid.UUID `json:"question_id" binding:"required"`
	AnswerOptionIDs []string  `json:"answer_option_ids" binding:"required"`
}

// SubmitRequest is the manual submission payload.
type SubmitRequest struct {
	TimeSpentSeconds int64             `json:"time_spent_seconds" binding:"min=0"`
	Answers          []SubmittedAnswer `json:"answers"`
}

// SessionSummary aggregates all results of a finished session.
type SessionSummary struct {
	TotalSubmissions int     `json:"total_submissions"`
	AverageScore     float64 `json:"average_score"`
	PassRate         float64 `json:"pass_rate"`
	HighestScore     float64 `json:"highest_score"`
	LowestScore      float64 `json:"lowest_score"`
}
