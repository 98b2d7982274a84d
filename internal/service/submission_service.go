package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrAttemptNotStarted = errors.New("attempt was never started")
	ErrAttemptAbandoned  = errors.New("attempt was abandoned")
	ErrAnswerKeyMissing  = errors.New("answer key unavailable for session")
)

// SubmissionService grades and persists submissions. A submission is
// at-most-once per (session, student): manual submit, deadline auto-submit
// and the force-finish sweep all converge on the same insert, and the unique
// index decides the winner. The loser gets the winner's result back.
type SubmissionService struct {
	questionRepo *repository.QuestionRepository
	attemptRepo  *repository.AttemptRepository
	resultRepo   *repository.ResultRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	questionRepo *repository.QuestionRepository,
	attemptRepo *repository.AttemptRepository,
	resultRepo *repository.ResultRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		resultRepo:   resultRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit grades the answers against the cached key and inserts the result.
// Returns (result, created): created=false means an earlier submission won
// and its result is returned unchanged.
func (s *SubmissionService) Submit(
	ctx context.Context,
	session *model.ExamSession,
	studentID int,
	answers []model.SubmittedAnswer,
	reportedTimeSpent int64,
	isAutoSubmit bool,
) (*model.ExamResult, bool, error) {
	attempt, err := s.attemptRepo.Get(ctx, session.ID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrAttemptNotStarted
		}
		return nil, false, fmt.Errorf("get attempt: %w", err)
	}

	// Abandoned is terminal: the finish sweep or the deadline worker closed
	// this attempt with no recorded answers, and a late payload cannot revive
	// it into a result row.
	if attempt.Status == model.AttemptStatusAbandoned {
		return nil, false, ErrAttemptAbandoned
	}

	key, err := s.AnswerKey(ctx, session.ID)
	if err != nil {
		return nil, false, err
	}

	graded, correct, score := GradeSubmission(key, answers)

	result := &model.ExamResult{
		SessionID:        session.ID,
		StudentID:        studentID,
		Score:            score,
		CorrectCount:     correct,
		TotalQuestions:   len(key),
		TimeSpentSeconds: s.clampTimeSpent(reportedTimeSpent, attempt.StartedAt, session.DurationMinutes),
		AttemptNumber:    1,
		IsAutoSubmit:     isAutoSubmit,
		Answers:          graded,
	}

	result, created, err := s.resultRepo.Create(ctx, result)
	if err != nil {
		return nil, false, fmt.Errorf("persist result: %w", err)
	}

	if created {
		if err := s.attemptRepo.SetStatus(ctx, session.ID, studentID, model.AttemptStatusSubmitted); err != nil {
			s.log.Error().Err(err).Int("student_id", studentID).Msg("Mark attempt submitted failed")
		}
		s.freezeProgress(ctx, session.ID.String(), studentID, result)
		s.cleanupAttemptKeys(ctx, session.ID.String(), studentID)
		s.log.Info().
			Str("session_id", session.ID.String()).
			Int("student_id", studentID).
			Float64("score", score).
			Bool("auto", isAutoSubmit).
			Msg("Submission recorded")
	}

	return result, created, nil
}

// SubmitFromAutosave replays the student's autosaved answers from Redis as a
// submission. Used by the WebSocket submit action, the deadline worker and
// the force-finish sweep, where no answer payload travels with the request.
func (s *SubmissionService) SubmitFromAutosave(ctx context.Context, session *model.ExamSession, studentID int, reportedTimeSpent int64, isAutoSubmit bool) (*model.ExamResult, bool, error) {
	saved, err := s.rdb.HGetAll(ctx, config.CacheKey.StudentAnswersKey(session.ID.String(), studentID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("read autosaved answers: %w", err)
	}

	answers := make([]model.SubmittedAnswer, 0, len(saved))
	for field, raw := range saved {
		qid, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		var optionIDs []string
		if err := json.Unmarshal([]byte(raw), &optionIDs); err != nil {
			continue
		}
		answers = append(answers, model.SubmittedAnswer{QuestionID: qid, AnswerOptionIDs: optionIDs})
	}
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].QuestionID.String() < answers[j].QuestionID.String()
	})

	return s.Submit(ctx, session, studentID, answers, reportedTimeSpent, isAutoSubmit)
}

// AnswerKey loads a session's answer key from the Redis hash, falling back to
// PostgreSQL (and re-warming the hash) when the cache is cold.
func (s *SubmissionService) AnswerKey(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]AnswerKeyEntry, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.AnswerKeyKey(sessionID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("read answer key: %w", err)
	}

	if len(raw) == 0 {
		return s.rebuildAnswerKey(ctx, sessionID)
	}

	key := make(map[uuid.UUID]AnswerKeyEntry, len(raw))
	for field, val := range raw {
		qid, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		var entry AnswerKeyEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			return nil, fmt.Errorf("decode key entry %s: %w", field, err)
		}
		key[qid] = entry
	}
	return key, nil
}

func (s *SubmissionService) rebuildAnswerKey(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]AnswerKeyEntry, error) {
	questions, err := s.questionRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("rebuild answer key: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrAnswerKeyMissing
	}

	key := make(map[uuid.UUID]AnswerKeyEntry, len(questions))
	cached := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		entry := AnswerKeyEntry{Kind: q.Kind, Correct: q.CorrectOptionIDs}
		key[q.ID] = entry
		encoded, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		cached[q.ID.String()] = encoded
	}

	if err := s.rdb.HSet(ctx, config.CacheKey.AnswerKeyKey(sessionID.String()), cached).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Re-warm answer key failed")
	}
	return key, nil
}

// clampTimeSpent caps the client-reported figure at what the server clock
// allows. A non-positive or inflated report is replaced, never trusted.
func (s *SubmissionService) clampTimeSpent(reported int64, startedAt time.Time, durationMinutes int) int64 {
	elapsed := int64(time.Since(startedAt).Seconds())
	if max := int64(durationMinutes) * 60; elapsed > max {
		elapsed = max
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if reported <= 0 || reported > elapsed {
		return elapsed
	}
	return reported
}

// freezeProgress writes the final figures into the live progress hash so the
// teacher's monitor shows the submitted state until the session is torn down.
func (s *SubmissionService) freezeProgress(ctx context.Context, sessionID string, studentID int, res *model.ExamResult) {
	entry, err := json.Marshal(progressEntry{
		QuestionsAnswered: len(res.Answers),
		CurrentScore:      res.Score,
		TimeSpentSeconds:  res.TimeSpentSeconds,
		Submitted:         true,
	})
	if err != nil {
		return
	}
	if err := s.rdb.HSet(ctx, config.CacheKey.ProgressKey(sessionID), fmt.Sprint(studentID), entry).Err(); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Freeze progress failed")
	}
}

func (s *SubmissionService) cleanupAttemptKeys(ctx context.Context, sessionID string, studentID int) {
	pipe := s.rdb.Pipeline()
	pipe.ZRem(ctx, config.CacheKey.DeadlineSetKey(), config.CacheKey.DeadlineMember(sessionID, studentID))
	pipe.Del(ctx, config.CacheKey.StudentAnswersKey(sessionID, studentID))
	pipe.Del(ctx, config.CacheKey.AttemptStartKey(sessionID, studentID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Cleanup attempt keys failed")
	}
}
