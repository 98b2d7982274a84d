package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the lifecycle states of a live exam session.
type SessionStatus string

const (
	SessionStatusDraft      SessionStatus = "DRAFT"
	SessionStatusWaiting    SessionStatus = "WAITING"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusFinished   SessionStatus = "FINISHED"
)

// CanTransition reports whether moving from s to target is a legal lifecycle
// step. The lifecycle only moves forward, with one exception: WAITING → DRAFT
// closes the waiting room without starting the exam.
func (s SessionStatus) CanTransition(target SessionStatus) bool {
	switch s {
	case SessionStatusDraft:
		return target == SessionStatusWaiting
	case SessionStatusWaiting:
		return target == SessionStatusInProgress || target == SessionStatusDraft
	case SessionStatusInProgress:
		return target == SessionStatusFinished
	default:
		return false
	}
}

// ExamSession represents one scheduled/live instance of an online exam.
type ExamSession struct {
	ID              uuid.UUID     `json:"id"`
	TeacherID       int           `json:"teacher_id"`
	Title           string        `json:"title"`
	AccessCode      string        `json:"access_code,omitempty"`
	Status          SessionStatus `json:"status"`
	DurationMinutes int           `json:"duration_minutes"`
	MaxParticipants int           `json:"max_participants"`
	PassingScore    float64       `json:"passing_score"`
	TotalQuestions  int           `json:"total_questions"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// CreateSessionRequest is the payload for creating a new session as DRAFT.
// Questions are embedded so a session is never opened without its paper.
type CreateSessionRequest struct {
	Title           string                  `json:"title" binding:"required,min=3,max=255"`
	DurationMinutes int                     `json:"duration_minutes" binding:"required,min=1,max=480"`
	MaxParticipants int                     `json:"max_participants" binding:"required,min=1,max=1000"`
	PassingScore    float64                 `json:"passing_score" binding:"min=0,max=100"`
	Questions       []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// SessionInfo is the public snapshot returned for an access-code lookup.
// It intentionally omits teacher-only fields.
type SessionInfo struct {
	ID               uuid.UUID     `json:"id"`
	Title            string        `json:"title"`
	Status           SessionStatus `json:"status"`
	DurationMinutes  int           `json:"duration_minutes"`
	MaxParticipants  int           `json:"max_participants"`
	ParticipantCount int           `json:"participant_count"`
}
