package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeadlineWorker sweeps the attempt deadline sorted set every second and
// auto-submits attempts whose server-side deadline has passed. Members are
// removed only after a successful settle, so a failed sweep retries on the
// next tick instead of losing the attempt.
type DeadlineWorker struct {
	sessionRepo *repository.SessionRepository
	attemptRepo *repository.AttemptRepository
	submission  *service.SubmissionService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(
	sessionRepo *repository.SessionRepository,
	attemptRepo *repository.AttemptRepository,
	submission *service.SubmissionService,
	rdb *redis.Client,
	log zerolog.Logger,
) *DeadlineWorker {
	return &DeadlineWorker{
		sessionRepo: sessionRepo,
		attemptRepo: attemptRepo,
		submission:  submission,
		rdb:         rdb,
		log:         log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineWorker) sweep(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	expired, err := w.rdb.ZRangeByScore(ctx, config.CacheKey.DeadlineSetKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Deadline scan error")
		}
		return
	}

	for _, member := range expired {
		if err := w.settle(ctx, member); err != nil {
			w.log.Error().Err(err).Str("member", member).Msg("Settle error, will retry")
			continue
		}
		w.rdb.ZRem(ctx, config.CacheKey.DeadlineSetKey(), member)
	}
}

func (w *DeadlineWorker) settle(ctx context.Context, member string) error {
	sessionID, studentID, err := service.ParseDeadlineMember(member)
	if err != nil {
		// Never parseable; drop it rather than retry forever.
		w.log.Error().Err(err).Str("member", member).Msg("Dropping malformed member")
		return nil
	}

	session, err := w.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	answered, err := w.rdb.HLen(ctx, config.CacheKey.StudentAnswersKey(sessionID.String(), studentID)).Result()
	if err != nil {
		return err
	}

	if answered == 0 {
		if err := w.attemptRepo.SetStatus(ctx, sessionID, studentID, model.AttemptStatusAbandoned); err != nil {
			return err
		}
		w.log.Info().
			Str("session_id", sessionID.String()).
			Int("student_id", studentID).
			Msg("Deadline passed with no answers, attempt abandoned")
		return nil
	}

	result, created, err := w.submission.SubmitFromAutosave(ctx, session, studentID, 0, true)
	if err != nil {
		// The finish sweep already closed this attempt; nothing left to settle.
		if errors.Is(err, service.ErrAttemptAbandoned) {
			return nil
		}
		return err
	}
	if created {
		w.notifyAutoSubmit(ctx, sessionID.String(), studentID, result)
		w.log.Info().
			Str("session_id", sessionID.String()).
			Int("student_id", studentID).
			Float64("score", result.Score).
			Msg("Deadline auto-submit")
	}
	return nil
}

// notifyAutoSubmit tells connected clients the attempt was closed by the
// clock, carrying the final score so the student's UI can show it.
func (w *DeadlineWorker) notifyAutoSubmit(ctx context.Context, sessionID string, studentID int, result *model.ExamResult) {
	payload, err := json.Marshal(map[string]interface{}{
		"event":      "auto_submitted",
		"student_id": studentID,
		"score":      result.Score,
	})
	if err != nil {
		return
	}
	if err := w.rdb.Publish(ctx, config.CacheKey.SessionEventsChannel(sessionID), payload).Err(); err != nil {
		w.log.Warn().Err(err).Msg("Publish auto-submit event failed")
	}
}
