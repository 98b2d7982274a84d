package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
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

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WaitingRoomHandler streams roster updates to everyone watching a waiting
// room: the joined students and the owning teacher. Each message carries the
// full roster, so a dropped message costs nothing.
type WaitingRoomHandler struct {
	rdb         *redis.Client
	sessionRepo *repository.SessionRepository
	waitingRoom *service.WaitingRoomService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWaitingRoomHandler creates a new WaitingRoomHandler.
func NewWaitingRoomHandler(
	rdb *redis.Client,
	sessionRepo *repository.SessionRepository,
	waitingRoom *service.WaitingRoomService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WaitingRoomHandler {
	return &WaitingRoomHandler{
		rdb:         rdb,
		sessionRepo: sessionRepo,
		waitingRoom: waitingRoom,
		log:         log.With().Str("component", "waiting_room_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// WaitingRoomStream godoc
// WS /ws/v1/sessions/:access_code/waiting-room?token=...
// Sends the current roster on connect, then forwards every roster update and
// lifecycle event published for this room until the client disconnects.
func (h *WaitingRoomHandler) WaitingRoomStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	accessCode := c.Param("access_code")
	session, err := h.sessionRepo.GetByAccessCode(c.Request.Context(), accessCode)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if claims.TokenType == service.TokenTypeTeacher && session.TeacherID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("session_id", session.ID.String()).
		Logger()

	if session.Status != model.SessionStatusWaiting {
		ws.WriteError(conn, "waiting room is not open")
		return
	}

	ctx := c.Request.Context()

	// Subscribe before the initial snapshot so no update between the two
	// is lost. Full snapshots make the overlap harmless.
	pubsub := h.rdb.Subscribe(ctx, config.CacheKey.WaitingRoomChannel(accessCode))
	defer pubsub.Close()

	roster, err := h.waitingRoom.Participants(ctx, session)
	if err != nil {
		wsLog.Error().Err(err).Msg("Initial roster snapshot failed")
		ws.WriteError(conn, "roster unavailable")
		return
	}
	if err := ws.WriteTyped(conn, service.RosterUpdate{
		Event:        string(ws.EventRoster),
		Participants: roster,
		Count:        len(roster),
	}); err != nil {
		return
	}

	wsLog.Info().Msg("Waiting room watcher connected")

	// Reader goroutine: its only jobs are pong bookkeeping and noticing
	// the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-done:
			wsLog.Debug().Msg("Waiting room watcher disconnected")
			return
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := ws.WriteRaw(conn, []byte(msg.Payload)); err != nil {
				wsLog.Debug().Err(err).Msg("Forward failed, closing")
				return
			}
		}
	}
}
