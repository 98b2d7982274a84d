package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam lifecycle ────────────────────────────────────────────────
	ErrInvalidStateTransition ErrCode = "INVALID_STATE_TRANSITION"
	ErrSessionNotJoinable     ErrCode = "SESSION_NOT_JOINABLE"
	ErrCapacityExceeded       ErrCode = "CAPACITY_EXCEEDED"
	ErrAlreadySubmitted       ErrCode = "ALREADY_SUBMITTED"
	ErrNoQuestions            ErrCode = "NO_QUESTIONS"
	ErrAttemptNotStarted      ErrCode = "ATTEMPT_NOT_STARTED"
	ErrAttemptAbandoned       ErrCode = "ATTEMPT_ABANDONED"
	ErrSessionNotInProgress   ErrCode = "SESSION_NOT_IN_PROGRESS"
	ErrSessionNotFinished     ErrCode = "SESSION_NOT_FINISHED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrTeacherAccessOnly:
		return "This resource is restricted to teachers."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam lifecycle ────────────────────────────────────────────────
	case ErrInvalidStateTransition:
		return "This action is not allowed in the session's current state."
	case ErrSessionNotJoinable:
		return "The waiting room for this session is not open."
	case ErrCapacityExceeded:
		return "The session is full."
	case ErrAlreadySubmitted:
		return "Your answers were already submitted."
	case ErrNoQuestions:
		return "The session has no questions."
	case ErrAttemptNotStarted:
		return "You have not started this exam."
	case ErrAttemptAbandoned:
		return "Your attempt was closed without answers when the session ended."
	case ErrSessionNotInProgress:
		return "The session is not in progress."
	case ErrSessionNotFinished:
		return "The session is not finished yet."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
