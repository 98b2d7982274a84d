package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionKind distinguishes the three scoring modes.
type QuestionKind string

const (
	QuestionKindSingle    QuestionKind = "SINGLE"
	QuestionKindMultiple  QuestionKind = "MULTIPLE"
	QuestionKindTrueFalse QuestionKind = "TRUE_FALSE"
)

// Question represents a single exam question with its authoritative answer set.
type Question struct {
	ID               uuid.UUID       `json:"id"`
	SessionID        uuid.UUID       `json:"session_id"`
	QuestionText     string          `json:"question_text"`
	Kind             QuestionKind    `json:"kind"`
	Options          json.RawMessage `json:"options"`
	CorrectOptionIDs []string        `json:"correct_option_ids"`
	OrderNum         int             `json:"order_num"`
}

// QuestionForStudent is a question stripped of its correct answers,
// safe to send to exam takers.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	Kind         QuestionKind    `json:"kind"`
	Options      json.RawMessage `json:"options"`
	OrderNum     int             `json:"order_num"`
}

// CreateQuestionRequest is the embedded question payload on session creation.
type CreateQuestionRequest struct {
	QuestionText     string          `json:"question_text" binding:"required,min=1,max=2000"`
	Kind             string          `json:"kind" binding:"required,oneof=SINGLE MULTIPLE TRUE_FALSE"`
	Options          json.RawMessage `json:"options" binding:"required"`
	CorrectOptionIDs []string        `json:"correct_option_ids" binding:"required,min=1"`
	OrderNum         int             `json:"order_num" binding:"min=0"`
}

// ExamPaper is the Redis-cached payload sent to students (no correct answers).
type ExamPaper struct {
	SessionID uuid.UUID            `json:"session_id"`
	Title     string               `json:"title"`
	Duration  int                  `json:"duration_minutes"`
	Questions []QuestionForStudent `json:"questions"`
}
