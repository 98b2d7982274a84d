package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	"github.com/quizdesk/quizdesk-backend/internal/validator"
	"github.com/rs/zerolog"
)

// SessionHandler handles the teacher's side of the session lifecycle.
type SessionHandler struct {
	lifecycle *service.LifecycleService
	progress  *service.ProgressService
	results   *service.ResultsService
	log       zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	lifecycle *service.LifecycleService,
	progress *service.ProgressService,
	results *service.ResultsService,
	log zerolog.Logger,
) *SessionHandler {
	return &SessionHandler{
		lifecycle: lifecycle,
		progress:  progress,
		results:   results,
		log:       log.With().Str("component", "session_handler").Logger(),
	}
}

// failLifecycle maps service-layer lifecycle errors onto the response taxonomy.
func failLifecycle(c *gin.Context, err error) {
	var transition *service.InvalidStateTransitionError
	switch {
	case errors.As(err, &transition):
		response.FailWithMessage(c, http.StatusConflict, response.ErrInvalidStateTransition, transition.Error())
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	case errors.Is(err, service.ErrNotSessionOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func sessionIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// CreateSession godoc
// POST /api/v1/teacher/sessions
// Creates a DRAFT session with its questions in one request.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.lifecycle.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		h.log.Error().Err(err).Msg("Create session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// ListSessions godoc
// GET /api/v1/teacher/sessions?page=&limit=
func (h *SessionHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sessions, total, err := h.lifecycle.ListByTeacher(c.Request.Context(), claims.UserID, limit, (page-1)*limit)
	if err != nil {
		h.log.Error().Err(err).Msg("List sessions failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	totalPages := (total + limit - 1) / limit
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, &response.Pagination{
		Page:       page,
		PerPage:    limit,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

// GetSession godoc
// GET /api/v1/teacher/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.lifecycle.GetOwned(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// OpenWaitingRoom godoc
// POST /api/v1/teacher/sessions/:session_id/open
// DRAFT → WAITING; returns the generated access code.
func (h *SessionHandler) OpenWaitingRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.lifecycle.OpenWaitingRoom(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// BeginExam godoc
// POST /api/v1/teacher/sessions/:session_id/begin
// WAITING → IN_PROGRESS; the roster is frozen and the exam starts for everyone.
func (h *SessionHandler) BeginExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.lifecycle.Begin(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// FinishExam godoc
// POST /api/v1/teacher/sessions/:session_id/finish
// IN_PROGRESS → FINISHED (settling open attempts), or WAITING → DRAFT when
// the teacher closes an unstarted room.
func (h *SessionHandler) FinishExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.lifecycle.Finish(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// LiveProgress godoc
// GET /api/v1/teacher/sessions/:session_id/progress
// Polling endpoint for the monitoring dashboard. Ranked snapshot of every
// started attempt.
func (h *SessionHandler) LiveProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.lifecycle.GetOwned(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failLifecycle(c, err)
		return
	}
	if session.Status != model.SessionStatusInProgress && session.Status != model.SessionStatusFinished {
		response.Fail(c, http.StatusConflict, response.ErrSessionNotInProgress)
		return
	}

	snapshot, err := h.progress.Poll(c.Request.Context(), session)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Progress poll failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_id": session.ID,
		"status":     session.Status,
		"progress":   snapshot,
	})
}

// SessionResults godoc
// GET /api/v1/teacher/sessions/:session_id/results
// All results plus the aggregate summary. FINISHED sessions only.
func (h *SessionHandler) SessionResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.lifecycle.GetOwned(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failLifecycle(c, err)
		return
	}

	results, summary, err := h.results.SessionResults(c.Request.Context(), session)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFinished) {
			response.Fail(c, http.StatusConflict, response.ErrSessionNotFinished)
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("List results failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if results == nil {
		results = []model.ExamResult{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"results": results,
		"summary": summary,
	})
}
