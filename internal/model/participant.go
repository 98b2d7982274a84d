package model

import "time"

// Participant is a student's membership in one session's waiting room.
// Rows live in Redis while the room is open and are snapshotted to
// PostgreSQL the moment the exam begins.
type Participant struct {
	UserID      int       `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// AttemptStatus tracks a started attempt's terminal outcome.
type AttemptStatus string

const (
	AttemptStatusStarted   AttemptStatus = "STARTED"
	AttemptStatusSubmitted AttemptStatus = "SUBMITTED"
	// AttemptStatusAbandoned marks a student who started but recorded no
	// answers before the session finished. Distinct from a 0-score result:
	// abandoned attempts produce no result row at all.
	AttemptStatusAbandoned AttemptStatus = "ABANDONED"
)

// AttemptStart is the server-recorded start instant of one student's attempt.
// The authoritative deadline is derived from StartedAt, never from the client.
type AttemptStart struct {
	SessionID string        `json:"session_id"`
	StudentID int           `json:"student_id"`
	StartedAt time.Time     `json:"started_at"`
	Status    AttemptStatus `json:"status"`
}
