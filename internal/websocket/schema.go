package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to autosave a single answer.
// OptionIDs carries one element for SINGLE/TRUE_FALSE, several for MULTIPLE.
type AnswerRequest struct {
	Action     Action   `json:"action"`
	QuestionID string   `json:"question_id"`
	OptionIDs  []string `json:"option_ids"`
}

// SubmitRequest is sent by the client to finish and grade the attempt.
type SubmitRequest struct {
	Action           Action `json:"action"`
	TimeSpentSeconds int64  `json:"time_spent_seconds"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSaved    Event = "saved"
	EventGraded   Event = "graded"
	EventPong     Event = "pong"
	EventWarning  Event = "time_warning"
	EventFinished Event = "session_finished"

	// Waiting room events.
	EventRoster    Event = "roster"
	EventStarted   Event = "session_started"
	EventCancelled Event = "session_cancelled"
)

type SavedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

// GradedResponse carries the final outcome of a submission. AlreadySubmitted
// marks a repeat submit that returned the original result unchanged.
type GradedResponse struct {
	Event            Event   `json:"event"`
	Score            float64 `json:"score"`
	CorrectCount     int     `json:"correct_count"`
	TotalQuestions   int     `json:"total_questions"`
	AutoSubmit       bool    `json:"auto_submit"`
	AlreadySubmitted bool    `json:"already_submitted,omitempty"`
}

// WarningResponse is pushed once when the remaining time crosses the
// warning threshold.
type WarningResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

type FinishedResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}
