package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrSessionNotInProgress = errors.New("session is not in progress")
	ErrNotParticipant       = errors.New("student is not a participant of this session")
	ErrAlreadySubmitted     = errors.New("attempt already submitted")
)

// AttemptState is the reconnect snapshot for a student mid-exam: what was
// answered, how much server time remains, and whether the attempt already
// ended. A client that crashes resumes from this, not from local storage.
type AttemptState struct {
	StartedAt        time.Time           `json:"started_at"`
	RemainingSeconds int64               `json:"remaining_seconds"`
	SavedAnswers     map[string][]string `json:"saved_answers"`
	Submitted        bool                `json:"submitted"`
}

// ExamService serves the student-facing side of a running exam: handing out
// the paper, anchoring the attempt start on the server clock, and restoring
// state after a reconnect.
type ExamService struct {
	questionRepo    *repository.QuestionRepository
	participantRepo *repository.ParticipantRepository
	attemptRepo     *repository.AttemptRepository
	rdb             *redis.Client
	log             zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	questionRepo *repository.QuestionRepository,
	participantRepo *repository.ParticipantRepository,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		questionRepo:    questionRepo,
		participantRepo: participantRepo,
		attemptRepo:     attemptRepo,
		rdb:             rdb,
		log:             log.With().Str("component", "exam_service").Logger(),
	}
}

// Take hands the paper to a participant and records the attempt start.
// The very first call stamps started_at server-side and registers the
// deadline; every later call (refresh, new device) returns the same paper
// and the original start instant.
func (s *ExamService) Take(ctx context.Context, session *model.ExamSession, studentID int) (*model.ExamPaper, *model.AttemptStart, error) {
	if session.Status != model.SessionStatusInProgress {
		return nil, nil, ErrSessionNotInProgress
	}

	joined, err := s.participantRepo.IsParticipant(ctx, session.ID, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("check participant: %w", err)
	}
	if !joined {
		return nil, nil, ErrNotParticipant
	}

	paper, err := s.Paper(ctx, session)
	if err != nil {
		return nil, nil, err
	}

	attempt, err := s.attemptRepo.Start(ctx, session.ID, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("start attempt: %w", err)
	}

	// Submitted and abandoned attempts are over; only a live attempt gets
	// the paper back.
	switch attempt.Status {
	case model.AttemptStatusSubmitted:
		return nil, nil, ErrAlreadySubmitted
	case model.AttemptStatusAbandoned:
		return nil, nil, ErrAttemptAbandoned
	}

	s.registerDeadline(ctx, session, attempt)

	return paper, attempt, nil
}

// Paper loads the student-facing paper from the fast lane, rebuilding it from
// PostgreSQL when the cache is cold.
func (s *ExamService) Paper(ctx context.Context, session *model.ExamSession) (*model.ExamPaper, error) {
	sid := session.ID.String()
	cached, err := s.rdb.Get(ctx, config.CacheKey.PaperKey(sid)).Result()
	if err == nil {
		paper := &model.ExamPaper{}
		if err := json.Unmarshal([]byte(cached), paper); err == nil {
			return paper, nil
		}
		s.log.Warn().Str("session_id", sid).Msg("Corrupt cached paper, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read cached paper: %w", err)
	}

	questions, err := s.questionRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	studentQuestions := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		studentQuestions[i] = model.QuestionForStudent{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Kind:         q.Kind,
			Options:      q.Options,
			OrderNum:     q.OrderNum,
		}
	}

	paper := &model.ExamPaper{
		SessionID: session.ID,
		Title:     session.Title,
		Duration:  session.DurationMinutes,
		Questions: studentQuestions,
	}
	if encoded, err := json.Marshal(paper); err == nil {
		if err := s.rdb.Set(ctx, config.CacheKey.PaperKey(sid), encoded, 0).Err(); err != nil {
			s.log.Warn().Err(err).Str("session_id", sid).Msg("Re-warm paper failed")
		}
	}
	return paper, nil
}

// State restores a student's attempt after a reconnect.
func (s *ExamService) State(ctx context.Context, session *model.ExamSession, studentID int) (*AttemptState, error) {
	attempt, err := s.attemptRepo.Get(ctx, session.ID, studentID)
	if err != nil {
		return nil, ErrAttemptNotStarted
	}

	timer := NewExamTimer(attempt.StartedAt, time.Duration(session.DurationMinutes)*time.Minute)
	state := &AttemptState{
		StartedAt:        attempt.StartedAt,
		RemainingSeconds: int64(timer.Remaining(time.Now()).Seconds()),
		SavedAnswers:     map[string][]string{},
		Submitted:        attempt.Status == model.AttemptStatusSubmitted,
	}
	if state.Submitted {
		return state, nil
	}

	saved, err := s.rdb.HGetAll(ctx, config.CacheKey.StudentAnswersKey(session.ID.String(), studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read autosaved answers: %w", err)
	}
	for field, raw := range saved {
		var optionIDs []string
		if err := json.Unmarshal([]byte(raw), &optionIDs); err != nil {
			continue
		}
		state.SavedAnswers[field] = optionIDs
	}
	return state, nil
}

// Timer builds the authoritative countdown for one attempt.
func (s *ExamService) Timer(ctx context.Context, session *model.ExamSession, studentID int) (*ExamTimer, error) {
	attempt, err := s.attemptRepo.Get(ctx, session.ID, studentID)
	if err != nil {
		return nil, ErrAttemptNotStarted
	}
	return NewExamTimer(attempt.StartedAt, time.Duration(session.DurationMinutes)*time.Minute), nil
}

func (s *ExamService) registerDeadline(ctx context.Context, session *model.ExamSession, attempt *model.AttemptStart) {
	deadline := attempt.StartedAt.Add(time.Duration(session.DurationMinutes) * time.Minute)

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, config.CacheKey.DeadlineSetKey(), redis.Z{
		Score:  float64(deadline.Unix()),
		Member: config.CacheKey.DeadlineMember(session.ID.String(), attempt.StudentID),
	})
	pipe.Set(ctx, config.CacheKey.AttemptStartKey(session.ID.String(), attempt.StudentID),
		attempt.StartedAt.Unix(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error().Err(err).
			Str("session_id", session.ID.String()).
			Int("student_id", attempt.StudentID).
			Msg("Register deadline failed")
	}
}

// ParseDeadlineMember splits a deadline set member back into its parts.
func ParseDeadlineMember(member string) (uuid.UUID, int, error) {
	idx := strings.LastIndexByte(member, ':')
	if idx < 0 {
		return uuid.Nil, 0, fmt.Errorf("malformed deadline member %q", member)
	}
	sessionID, err := uuid.Parse(member[:idx])
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("malformed deadline member %q: %w", member, err)
	}
	studentID, err := strconv.Atoi(member[idx+1:])
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("malformed deadline member %q: %w", member, err)
	}
	return sessionID, studentID, nil
}
