package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/handler"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth        *handler.AuthHandler
	Session     *handler.SessionHandler
	StudentExam *handler.StudentExamHandler
	WaitingRoom *handler.WaitingRoomHandler
	ExamStream  *handler.ExamStreamHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/teacher/login", handlers.Auth.TeacherLogin)
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.GET("/teacher/me", middleware.RequireTeacherJWT(authService), handlers.Auth.TeacherMe)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.StudentMe)
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/sessions/:access_code", handlers.StudentExam.GetSessionInfo)
		studentAPI.POST("/sessions/:access_code/join", handlers.StudentExam.JoinWaitingRoom)
		studentAPI.POST("/sessions/:access_code/leave", handlers.StudentExam.LeaveWaitingRoom)
		studentAPI.GET("/sessions/:access_code/participants", handlers.StudentExam.ListParticipants)
		studentAPI.POST("/sessions/:access_code/take", handlers.StudentExam.TakeExam)
		studentAPI.GET("/sessions/:access_code/state", handlers.StudentExam.GetExamState)
		studentAPI.POST("/sessions/:access_code/submit", handlers.StudentExam.SubmitExam)
		studentAPI.GET("/sessions/:access_code/result", handlers.StudentExam.GetMyResult)
	}

	// ─── 3. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		teacherAPI.POST("/sessions", handlers.Session.CreateSession)
		teacherAPI.GET("/sessions", handlers.Session.ListSessions)
		teacherAPI.GET("/sessions/:session_id", handlers.Session.GetSession)
		teacherAPI.POST("/sessions/:session_id/open", handlers.Session.OpenWaitingRoom)
		teacherAPI.POST("/sessions/:session_id/begin", handlers.Session.BeginExam)
		teacherAPI.POST("/sessions/:session_id/finish", handlers.Session.FinishExam)
		teacherAPI.GET("/sessions/:session_id/progress", handlers.Session.LiveProgress)
		teacherAPI.GET("/sessions/:session_id/results", handlers.Session.SessionResults)
	}

	// ─── 4. WebSocket Group ────────────────────────────────────────────
	// The waiting room accepts both token types (students in the room, the
	// owning teacher watching it). The exam stream is student-only.
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:access_code/waiting-room",
			middleware.RequireWSAuth(authService),
			handlers.WaitingRoom.WaitingRoomStream,
		)
		ws.GET("/student/sessions/:session_id/stream",
			middleware.RequireStudentWSAuth(authService),
			handlers.ExamStream.ExamStream,
		)
	}

	return router
}
