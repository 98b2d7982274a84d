package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrNoQuestions     = errors.New("session has no questions, cannot open waiting room")
	ErrNotSessionOwner = errors.New("not the owner of this session")
)

// InvalidStateTransitionError reports an action requested against the wrong
// session status. It always names both sides so the rejection is diagnosable.
type InvalidStateTransitionError struct {
	Current   model.SessionStatus
	Requested model.SessionStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.Current, e.Requested)
}

const (
	accessCodeLength   = 6
	accessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O/1/I
	accessCodeRetries  = 5
)

// LifecycleService drives the exam session state machine:
// DRAFT → WAITING → IN_PROGRESS → FINISHED, plus the WAITING → DRAFT cancel.
// Every transition is a conditional UPDATE; a lost race surfaces as
// InvalidStateTransitionError, never a silent no-op.
type LifecycleService struct {
	sessionRepo     *repository.SessionRepository
	questionRepo    *repository.QuestionRepository
	participantRepo *repository.ParticipantRepository
	attemptRepo     *repository.AttemptRepository
	rosterRepo      *repository.RosterRepository
	submission      *SubmissionService
	rdb             *redis.Client
	log             zerolog.Logger
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	sessionRepo *repository.SessionRepository,
	questionRepo *repository.QuestionRepository,
	participantRepo *repository.ParticipantRepository,
	attemptRepo *repository.AttemptRepository,
	rosterRepo *repository.RosterRepository,
	submission *SubmissionService,
	rdb *redis.Client,
	log zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		sessionRepo:     sessionRepo,
		questionRepo:    questionRepo,
		participantRepo: participantRepo,
		attemptRepo:     attemptRepo,
		rosterRepo:      rosterRepo,
		submission:      submission,
		rdb:             rdb,
		log:             log.With().Str("component", "lifecycle_service").Logger(),
	}
}

// Create inserts a new DRAFT session with its questions in one shot.
func (s *LifecycleService) Create(ctx context.Context, teacherID int, req *model.CreateSessionRequest) (*model.ExamSession, error) {
	session := &model.ExamSession{
		TeacherID:       teacherID,
		Title:           req.Title,
		Status:          model.SessionStatusDraft,
		DurationMinutes: req.DurationMinutes,
		MaxParticipants: req.MaxParticipants,
		PassingScore:    req.PassingScore,
		TotalQuestions:  len(req.Questions),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = model.Question{
			SessionID:        session.ID,
			QuestionText:     q.QuestionText,
			Kind:             model.QuestionKind(q.Kind),
			Options:          q.Options,
			CorrectOptionIDs: q.CorrectOptionIDs,
			OrderNum:         q.OrderNum,
		}
	}
	if err := s.questionRepo.BulkInsert(ctx, session.ID, questions); err != nil {
		return nil, fmt.Errorf("insert questions: %w", err)
	}

	s.log.Info().Str("session_id", session.ID.String()).Int("questions", len(questions)).Msg("Session created")
	return session, nil
}

// GetOwned fetches a session and verifies teacher ownership.
func (s *LifecycleService) GetOwned(ctx context.Context, sessionID uuid.UUID, teacherID int) (*model.ExamSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.TeacherID != teacherID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

// ListByTeacher returns a teacher's sessions, newest first, with the total count.
func (s *LifecycleService) ListByTeacher(ctx context.Context, teacherID, limit, offset int) ([]model.ExamSession, int, error) {
	return s.sessionRepo.ListByTeacher(ctx, teacherID, limit, offset)
}

// OpenWaitingRoom moves DRAFT → WAITING and assigns a unique access code.
func (s *LifecycleService) OpenWaitingRoom(ctx context.Context, sessionID uuid.UUID, teacherID int) (*model.ExamSession, error) {
	session, err := s.GetOwned(ctx, sessionID, teacherID)
	if err != nil {
		return nil, err
	}

	if !session.Status.CanTransition(model.SessionStatusWaiting) {
		return nil, &InvalidStateTransitionError{Current: session.Status, Requested: model.SessionStatusWaiting}
	}

	count, err := s.questionRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if count == 0 {
		return nil, ErrNoQuestions
	}

	// Access-code collisions are rare but possible; retry with fresh codes.
	for i := 0; i < accessCodeRetries; i++ {
		code, err := generateAccessCode(accessCodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate access code: %w", err)
		}

		ok, err := s.sessionRepo.OpenWaitingRoom(ctx, sessionID, code)
		if err != nil {
			return nil, fmt.Errorf("open waiting room: %w", err)
		}
		if ok {
			session.Status = model.SessionStatusWaiting
			session.AccessCode = code
			s.log.Info().Str("session_id", sessionID.String()).Str("access_code", code).Msg("Waiting room opened")
			return session, nil
		}

		// Either the code collided or the status changed under us.
		current, err := s.sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("recheck session: %w", err)
		}
		if current.Status != model.SessionStatusDraft {
			return nil, &InvalidStateTransitionError{Current: current.Status, Requested: model.SessionStatusWaiting}
		}
	}
	return nil, errors.New("could not allocate a unique access code")
}

// Begin moves WAITING → IN_PROGRESS: stamps started_at once, snapshots the
// roster to PostgreSQL, warms the Redis fast lane (paper, answer key,
// duration), seeds zeroed live progress for every joined participant, and
// tells the waiting room to move.
func (s *LifecycleService) Begin(ctx context.Context, sessionID uuid.UUID, teacherID int) (*model.ExamSession, error) {
	session, err := s.GetOwned(ctx, sessionID, teacherID)
	if err != nil {
		return nil, err
	}

	if !session.Status.CanTransition(model.SessionStatusInProgress) {
		return nil, &InvalidStateTransitionError{Current: session.Status, Requested: model.SessionStatusInProgress}
	}

	startedAt, err := s.sessionRepo.MarkStarted(ctx, sessionID)
	if err != nil {
		// The conditional UPDATE matched no row: someone else transitioned.
		current, fetchErr := s.sessionRepo.GetByID(ctx, sessionID)
		if fetchErr != nil {
			return nil, fmt.Errorf("mark started: %w", err)
		}
		return nil, &InvalidStateTransitionError{Current: current.Status, Requested: model.SessionStatusInProgress}
	}
	session.Status = model.SessionStatusInProgress
	session.StartedAt = startedAt

	// Joins check for WAITING before touching the hash, so reading the
	// roster after the status flip catches anyone who raced the begin call.
	roster, err := s.rosterRepo.Snapshot(ctx, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("roster snapshot: %w", err)
	}

	if err := s.participantRepo.SnapshotRoster(ctx, sessionID, roster); err != nil {
		return nil, fmt.Errorf("persist roster: %w", err)
	}

	if err := s.warmSessionCache(ctx, session); err != nil {
		return nil, err
	}

	// Zeroed progress for everyone who was in the room, so the monitor shows
	// the full field from the first poll.
	if len(roster) > 0 {
		progress := make(map[string]interface{}, len(roster))
		for _, p := range roster {
			entry, _ := json.Marshal(progressEntry{QuestionsAnswered: 0, CurrentScore: 0})
			progress[strconv.Itoa(p.UserID)] = entry
		}
		if err := s.rdb.HSet(ctx, config.CacheKey.ProgressKey(sessionID.String()), progress).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to seed progress hash")
		}
	}

	s.publishRoomEvent(ctx, session.AccessCode, "session_started")

	// A join whose status read predates the flip may still have landed in
	// the hash after the snapshot above. Admit those before dropping the
	// hash, or the student would believe they joined and never be a
	// participant.
	s.admitStragglers(ctx, session, roster)

	if err := s.rosterRepo.Clear(ctx, sessionID.String()); err != nil {
		s.log.Warn().Err(err).Msg("Failed to clear roster hash")
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("participants", len(roster)).
		Msg("Session started")
	return session, nil
}

func (s *LifecycleService) admitStragglers(ctx context.Context, session *model.ExamSession, persisted []model.Participant) {
	current, err := s.rosterRepo.Snapshot(ctx, session.ID.String())
	if err != nil {
		s.log.Warn().Err(err).Msg("Straggler roster check failed")
		return
	}

	late := lateJoiners(persisted, current)
	if len(late) == 0 {
		return
	}

	if err := s.participantRepo.SnapshotRoster(ctx, session.ID, late); err != nil {
		s.log.Error().Err(err).Int("count", len(late)).Msg("Persist late joiners failed")
		return
	}
	for _, p := range late {
		entry, _ := json.Marshal(progressEntry{QuestionsAnswered: 0, CurrentScore: 0})
		// HSetNX: never clobber progress already recorded for this student.
		if err := s.rdb.HSetNX(ctx, config.CacheKey.ProgressKey(session.ID.String()), strconv.Itoa(p.UserID), entry).Err(); err != nil {
			s.log.Warn().Err(err).Int("student_id", p.UserID).Msg("Seed straggler progress failed")
		}
	}
	s.log.Info().Str("session_id", session.ID.String()).Int("count", len(late)).Msg("Admitted late joiners")
}

// lateJoiners returns the entries of current that are absent from persisted,
// keyed by student ID.
func lateJoiners(persisted, current []model.Participant) []model.Participant {
	seen := make(map[int]struct{}, len(persisted))
	for _, p := range persisted {
		seen[p.UserID] = struct{}{}
	}
	var late []model.Participant
	for _, p := range current {
		if _, ok := seen[p.UserID]; !ok {
			late = append(late, p)
		}
	}
	return late
}

// Finish is the dual-path close: WAITING → DRAFT cancels the waiting room,
// IN_PROGRESS → FINISHED completes the exam and settles every in-flight
// attempt. Any other status is an invalid transition.
func (s *LifecycleService) Finish(ctx context.Context, sessionID uuid.UUID, teacherID int) (*model.ExamSession, error) {
	session, err := s.GetOwned(ctx, sessionID, teacherID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case model.SessionStatusWaiting:
		return s.cancelWaitingRoom(ctx, session)
	case model.SessionStatusInProgress:
		return s.complete(ctx, session)
	default:
		return nil, &InvalidStateTransitionError{Current: session.Status, Requested: model.SessionStatusFinished}
	}
}

func (s *LifecycleService) cancelWaitingRoom(ctx context.Context, session *model.ExamSession) (*model.ExamSession, error) {
	ok, err := s.sessionRepo.CancelWaitingRoom(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("cancel waiting room: %w", err)
	}
	if !ok {
		current, fetchErr := s.sessionRepo.GetByID(ctx, session.ID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return nil, &InvalidStateTransitionError{Current: current.Status, Requested: model.SessionStatusDraft}
	}

	s.publishRoomEvent(ctx, session.AccessCode, "session_cancelled")
	if err := s.rosterRepo.Clear(ctx, session.ID.String()); err != nil {
		s.log.Warn().Err(err).Msg("Failed to clear roster hash")
	}

	session.Status = model.SessionStatusDraft
	session.AccessCode = ""
	s.log.Info().Str("session_id", session.ID.String()).Msg("Waiting room cancelled")
	return session, nil
}

func (s *LifecycleService) complete(ctx context.Context, session *model.ExamSession) (*model.ExamSession, error) {
	finishedAt, err := s.sessionRepo.MarkFinished(ctx, session.ID)
	if err != nil {
		current, fetchErr := s.sessionRepo.GetByID(ctx, session.ID)
		if fetchErr != nil {
			return nil, fmt.Errorf("mark finished: %w", err)
		}
		return nil, &InvalidStateTransitionError{Current: current.Status, Requested: model.SessionStatusFinished}
	}
	session.Status = model.SessionStatusFinished
	session.FinishedAt = finishedAt

	// Tell in-flight clients before the sweep so they stop sending answers.
	s.publishSessionEvent(ctx, session.ID.String(), "session_finished")

	if err := s.settleOpenAttempts(ctx, session); err != nil {
		// The session is FINISHED regardless; the sweep is logged and the
		// deadline worker will retry anything still carrying a deadline.
		s.log.Error().Err(err).Str("session_id", session.ID.String()).Msg("Settling open attempts failed")
	}

	s.log.Info().Str("session_id", session.ID.String()).Msg("Session finished")
	return session, nil
}

// settleOpenAttempts gives every still-running attempt a terminal outcome:
// auto-submit scored-as-is when any answers were recorded, ABANDONED when
// none were. Submission idempotency makes a race with a late manual submit
// or the deadline worker harmless.
func (s *LifecycleService) settleOpenAttempts(ctx context.Context, session *model.ExamSession) error {
	open, err := s.attemptRepo.ListStarted(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("list open attempts: %w", err)
	}

	for _, attempt := range open {
		answered, err := s.rdb.HLen(ctx, config.CacheKey.StudentAnswersKey(session.ID.String(), attempt.StudentID)).Result()
		if err != nil {
			s.log.Error().Err(err).Int("student_id", attempt.StudentID).Msg("Check autosaved answers failed")
			continue
		}

		if answered == 0 {
			if err := s.attemptRepo.SetStatus(ctx, session.ID, attempt.StudentID, model.AttemptStatusAbandoned); err != nil {
				s.log.Error().Err(err).Int("student_id", attempt.StudentID).Msg("Mark abandoned failed")
			}
			s.rdb.ZRem(ctx, config.CacheKey.DeadlineSetKey(), config.CacheKey.DeadlineMember(session.ID.String(), attempt.StudentID))
			continue
		}

		if _, _, err := s.submission.SubmitFromAutosave(ctx, session, attempt.StudentID, 0, true); err != nil {
			s.log.Error().Err(err).Int("student_id", attempt.StudentID).Msg("Force auto-submit failed")
		}
	}
	return nil
}

// warmSessionCache loads the paper, answer key and duration into Redis so the
// whole exam runs off the fast lane, mirroring what students are allowed to
// see versus what only grading may touch.
func (s *LifecycleService) warmSessionCache(ctx context.Context, session *model.ExamSession) error {
	questions, err := s.questionRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
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

	paper := model.ExamPaper{
		SessionID: session.ID,
		Title:     session.Title,
		Duration:  session.DurationMinutes,
		Questions: studentQuestions,
	}
	paperJSON, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	answerKey := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		entry, err := json.Marshal(AnswerKeyEntry{Kind: q.Kind, Correct: q.CorrectOptionIDs})
		if err != nil {
			return fmt.Errorf("marshal key entry: %w", err)
		}
		answerKey[q.ID.String()] = entry
	}

	sid := session.ID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.PaperKey(sid), paperJSON, 0)
	pipe.Del(ctx, config.CacheKey.AnswerKeyKey(sid))
	pipe.HSet(ctx, config.CacheKey.AnswerKeyKey(sid), answerKey)
	pipe.Set(ctx, config.CacheKey.DurationKey(sid), session.DurationMinutes, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().Str("session_id", sid).Int("questions", len(questions)).Msg("Cache warmed")
	return nil
}

func (s *LifecycleService) publishRoomEvent(ctx context.Context, accessCode, event string) {
	if accessCode == "" {
		return
	}
	payload, _ := json.Marshal(map[string]string{"event": event})
	if err := s.rdb.Publish(ctx, config.CacheKey.WaitingRoomChannel(accessCode), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("Publish room event failed")
	}
}

func (s *LifecycleService) publishSessionEvent(ctx context.Context, sessionID, event string) {
	payload, _ := json.Marshal(map[string]string{"event": event})
	if err := s.rdb.Publish(ctx, config.CacheKey.SessionEventsChannel(sessionID), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("Publish session event failed")
	}
}

// generateAccessCode builds a short human-enterable code from an alphabet
// without look-alike characters.
func generateAccessCode(n int) (string, error) {
	code := make([]byte, n)
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	for i := range code {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = accessCodeAlphabet[idx.Int64()]
	}
	return string(code), nil
}
