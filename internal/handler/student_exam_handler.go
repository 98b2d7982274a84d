package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	"github.com/quizdesk/quizdesk-backend/internal/validator"
	"github.com/rs/zerolog"
)

// StudentExamHandler handles the student's journey: finding a session by
// access code, the waiting room, taking the exam and submitting.
type StudentExamHandler struct {
	sessionRepo *repository.SessionRepository
	waitingRoom *service.WaitingRoomService
	examService *service.ExamService
	submission  *service.SubmissionService
	results     *service.ResultsService
	log         zerolog.Logger
}

// NewStudentExamHandler creates a new StudentExamHandler.
func NewStudentExamHandler(
	sessionRepo *repository.SessionRepository,
	waitingRoom *service.WaitingRoomService,
	examService *service.ExamService,
	submission *service.SubmissionService,
	results *service.ResultsService,
	log zerolog.Logger,
) *StudentExamHandler {
	return &StudentExamHandler{
		sessionRepo:     sessionRepo,
		waitingRoom:     waitingRoom,
		examService:     examService,
		submission:      submission,
		results:         results,
		log:             log.With().Str("component", "student_exam_handler").Logger(),
	}
}

func (h *StudentExamHandler) sessionByCode(c *gin.Context) (*model.ExamSession, bool) {
	code := c.Param("access_code")
	if code == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	session, err := h.sessionRepo.GetByAccessCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		} else {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return nil, false
	}
	return session, true
}

// GetSessionInfo godoc
// GET /api/v1/student/sessions/:access_code
// Public snapshot for the join screen. No teacher-only fields leak here.
func (h *StudentExamHandler) GetSessionInfo(c *gin.Context) {
	session, ok := h.sessionByCode(c)
	if !ok {
		return
	}

	roster, err := h.waitingRoom.Participants(c.Request.Context(), session)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Roster snapshot failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": model.SessionInfo{
		ID:               session.ID,
		Title:            session.Title,
		Status:           session.Status,
		DurationMinutes:  session.DurationMinutes,
		MaxParticipants:  session.MaxParticipants,
		ParticipantCount: len(roster),
	}})
}

// JoinWaitingRoom godoc
// POST /api/v1/student/sessions/:access_code/join
func (h *StudentExamHandler) JoinWaitingRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	session, ok := h.sessionByCode(c)
	if !ok {
		return
	}

	roster, err := h.waitingRoom.Join(c.Request.Context(), session, claims.UserID, claims.DisplayName, claims.AvatarURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotJoinable):
			response.Fail(c, http.StatusConflict, response.ErrSessionNotJoinable)
		case errors.Is(err, service.ErrCapacityExceeded):
			response.Fail(c, http.StatusConflict, response.ErrCapacityExceeded)
		default:
			h.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Join failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_id":   session.ID,
		"participants": roster,
	})
}

// LeaveWaitingRoom godoc
// POST /api/v1/student/sessions/:access_code/leave
// Leaving a room one never joined succeeds quietly.
func (h *StudentExamHandler) LeaveWaitingRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	session, ok := h.sessionByCode(c)
	if !ok {
		return
	}

	if err := h.waitingRoom.Leave(c.Request.Context(), session, claims.UserID); err != nil {
		h.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Leave failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "left"})
}

// ListParticipants godoc
// GET /api/v1/student/sessions/:access_code/participants
// Join-ordered roster snapshot, for clients that poll instead of
// holding the WebSocket open.
func (h *StudentExamHandler) ListParticipants(c *gin.Context) {
	session, ok := h.sessionByCode(c)
	if !ok {
		return
	}

	roster, err := h.waitingRoom.Participants(c.Request.Context(), session)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"participants": roster,
		"count":        len(roster),
	})
}

// TakeExam godoc
// POST /api/v1/student/sessions/:access_code/take
// Hands out the paper and anchors the attempt start on the server clock.
// Calling again after a refresh returns the same paper and start instant.
func (h *StudentExamHandler) TakeExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	session, ok := h.sessionByCode(c)
	if !ok {
		return
	}

	paper, attempt, err := h.examService.Take(c.Request.Context(), session, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotInProgress):
			response.Fail(c, http.StatusConflict, response.ErrSessionNotInProgress)
		case errors.Is(err, service.ErrNotParticipant):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		case errors.Is(err, service.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, service.ErrAttemptAbandoned):
			response.Fail(c, http.StatusConflict, response.ErrAttemptAbandoned)
		default:
			h.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Take failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"paper":      paper,
		"started_at": attempt.StartedAt,
	})
}

// GetExamState godoc
// GET /api/v1/student/sessions/:access_code/state
// Reconnect snapshot: answered questions and the server-side remaining time.
func (h *StudentExamHandler) GetExamState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	session, ok := h.sessionByCode(c)
	if !ok {
		return
	}

	state, err := h.examService.State(c.Request.Context(), session, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotStarted) {
			response.Fail(c, http.StatusConflict, response.ErrAttemptNotStarted)
			return
		}
		h.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("State failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SubmitExam godoc
// POST /api/v1/student/sessions/:access_code/submit
// Grades and records the final result. A repeat submit returns the original
// result with 200 and already_submitted set, not an error.
func (h *StudentExamHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	session, ok := h.sessionByCode(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, created, err := h.submission.Submit(c.Request.Context(), session, claims.UserID, req.Answers, req.TimeSpentSeconds, false)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAttemptNotStarted):
			response.Fail(c, http.StatusConflict, response.ErrAttemptNotStarted)
		case errors.Is(err, service.ErrAttemptAbandoned):
			response.Fail(c, http.StatusConflict, response.ErrAttemptAbandoned)
		default:
			h.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Submit failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"result":            result,
		"already_submitted": !created,
	})
}

// GetMyResult godoc
// GET /api/v1/student/sessions/:access_code/result
func (h *StudentExamHandler) GetMyResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	session, ok := h.sessionByCode(c)
	if !ok {
		return
	}

	result, err := h.results.StudentResult(c.Request.Context(), session, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrResultNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}
