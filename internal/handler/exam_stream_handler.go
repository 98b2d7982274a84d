package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	ws "github.com/quizdesk/quizdesk-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ExamStreamHandler is the student's in-exam WebSocket: answer autosave with
// instant acknowledgement, manual submit, and server pushes for the time
// warning, the deadline auto-submit and the teacher ending the session.
type ExamStreamHandler struct {
	rdb         *redis.Client
	sessionRepo *repository.SessionRepository
	examService *service.ExamService
	progress    *service.ProgressService
	submission  *service.SubmissionService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewExamStreamHandler creates a new ExamStreamHandler.
func NewExamStreamHandler(
	rdb *redis.Client,
	sessionRepo *repository.SessionRepository,
	examService *service.ExamService,
	progress *service.ProgressService,
	submission *service.SubmissionService,
	log zerolog.Logger,
	allowedOrigins []string,
) *ExamStreamHandler {
	return &ExamStreamHandler{
		rdb:         rdb,
		sessionRepo: sessionRepo,
		examService: examService,
		progress:    progress,
		submission:  submission,
		log:         log.With().Str("component", "exam_stream_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// inbound pairs a parsed envelope with its raw bytes so action payloads can
// be decoded after the type switch.
type inbound struct {
	action ws.Action
	raw    []byte
}

// ExamStream godoc
// WS /ws/v1/student/sessions/:session_id/stream?token=...
// Requires a started attempt (POST take first).
func (h *ExamStreamHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	session, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	studentID := claims.UserID
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("session_id", sessionID.String()).
		Logger()

	if session.Status != model.SessionStatusInProgress {
		ws.WriteError(conn, "session is not in progress")
		return
	}

	timer, err := h.examService.Timer(c.Request.Context(), session, studentID)
	if err != nil {
		ws.WriteError(conn, "attempt not started")
		return
	}

	ctx := c.Request.Context()
	pubsub := h.rdb.Subscribe(ctx, config.CacheKey.SessionEventsChannel(sessionID.String()))
	defer pubsub.Close()

	wsLog.Info().Msg("Student connected")

	readCh := make(chan inbound)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var envelope ws.RequestEnvelope
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if err := json.Unmarshal(raw, &envelope); err != nil {
				ws.WriteError(conn, "malformed message")
				continue
			}
			select {
			case readCh <- inbound{action: envelope.Action, raw: raw}:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	events := pubsub.Channel()
	for {
		select {
		case <-done:
			wsLog.Debug().Msg("Student disconnected")
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if timer.WarningDue(now) {
				ws.WriteTyped(conn, ws.WarningResponse{
					Event:            ws.EventWarning,
					RemainingSeconds: int64(timer.Remaining(now).Seconds()),
				})
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			if closed := h.handleEvent(conn, wsLog, studentID, []byte(msg.Payload)); closed {
				return
			}
		case in := <-readCh:
			switch in.action {
			case ws.ActionAnswer:
				h.handleAnswer(ctx, conn, session, studentID, in.raw)
			case ws.ActionSubmit:
				if closed := h.handleSubmit(ctx, conn, wsLog, session, studentID, in.raw); closed {
					return
				}
			case ws.ActionPing:
				ws.WriteTyped(conn, ws.PongResponse{
					Event:            ws.EventPong,
					RemainingSeconds: int64(timer.Remaining(time.Now()).Seconds()),
				})
			default:
				ws.WriteError(conn, "unknown action: "+string(in.action))
			}
		}
	}
}

// handleAnswer autosaves a single answer and acknowledges it.
func (h *ExamStreamHandler) handleAnswer(ctx context.Context, conn *websocket.Conn, session *model.ExamSession, studentID int, raw []byte) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		ws.WriteError(conn, "malformed answer")
		return
	}
	if req.QuestionID == "" || len(req.OptionIDs) == 0 {
		ws.WriteError(conn, "question_id and option_ids are required")
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		ws.WriteError(conn, "invalid question_id format")
		return
	}

	if err := h.progress.RecordAnswer(ctx, session, studentID, questionID, req.OptionIDs); err != nil {
		h.log.Error().Err(err).Int("student_id", studentID).Msg("Record answer failed")
		ws.WriteError(conn, "save failed")
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: req.QuestionID})
}

// handleSubmit settles the attempt from the autosaved answers. Returns true
// when the connection should close.
func (h *ExamStreamHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, session *model.ExamSession, studentID int, raw []byte) bool {
	var req ws.SubmitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		ws.WriteError(conn, "malformed submit")
		return false
	}

	result, created, err := h.submission.SubmitFromAutosave(ctx, session, studentID, req.TimeSpentSeconds, false)
	if err != nil {
		if errors.Is(err, service.ErrAttemptAbandoned) {
			ws.WriteError(conn, "attempt abandoned")
			return true
		}
		wsLog.Error().Err(err).Msg("Submit failed")
		ws.WriteError(conn, "submit failed")
		return false
	}

	ws.WriteTyped(conn, ws.GradedResponse{
		Event:            ws.EventGraded,
		Score:            result.Score,
		CorrectCount:     result.CorrectCount,
		TotalQuestions:   result.TotalQuestions,
		AutoSubmit:       result.IsAutoSubmit,
		AlreadySubmitted: !created,
	})
	return true
}

// handleEvent reacts to session-wide lifecycle events from Pub/Sub. Returns
// true when the connection should close.
func (h *ExamStreamHandler) handleEvent(conn *websocket.Conn, wsLog zerolog.Logger, studentID int, payload []byte) bool {
	var event struct {
		Event     string  `json:"event"`
		StudentID int     `json:"student_id"`
		Score     float64 `json:"score"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return false
	}

	switch event.Event {
	case "session_finished":
		ws.WriteTyped(conn, ws.FinishedResponse{Event: ws.EventFinished})
		wsLog.Debug().Msg("Session finished, closing stream")
		return true
	case "auto_submitted":
		if event.StudentID != studentID {
			return false
		}
		ws.WriteTyped(conn, ws.GradedResponse{
			Event:      ws.EventGraded,
			Score:      event.Score,
			AutoSubmit: true,
		})
		wsLog.Debug().Msg("Deadline auto-submit, closing stream")
		return true
	}
	return false
}
