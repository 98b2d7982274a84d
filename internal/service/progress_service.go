package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// progressEntry is the per-student value inside the session progress hash.
// For a running attempt only the answered count and score are stored; time
// spent is derived from the server start instant at read time. Submitted
// entries are frozen with their final figures.
type progressEntry struct {
	QuestionsAnswered int     `json:"questions_answered"`
	CurrentScore      float64 `json:"current_score"`
	TimeSpentSeconds  int64   `json:"time_spent_seconds,omitempty"`
	Submitted         bool    `json:"submitted,omitempty"`
}

// ProgressService maintains and serves the teacher's live monitoring view.
// Every autosaved answer is re-graded in RAM against the cached key, so the
// monitor shows running scores without touching PostgreSQL.
type ProgressService struct {
	participantRepo *repository.ParticipantRepository
	attemptRepo     *repository.AttemptRepository
	submission      *SubmissionService
	rdb             *redis.Client
	log             zerolog.Logger
}

// NewProgressService creates a new ProgressService.
func NewProgressService(
	participantRepo *repository.ParticipantRepository,
	attemptRepo *repository.AttemptRepository,
	submission *SubmissionService,
	rdb *redis.Client,
	log zerolog.Logger,
) *ProgressService {
	return &ProgressService{
		participantRepo: participantRepo,
		attemptRepo:     attemptRepo,
		submission:      submission,
		rdb:             rdb,
		log:             log.With().Str("component", "progress_service").Logger(),
	}
}

// persistAnswerJob is the queue payload consumed by the answer worker.
type persistAnswerJob struct {
	SessionID  string   `json:"session_id"`
	StudentID  int      `json:"student_id"`
	QuestionID string   `json:"question_id"`
	OptionIDs  []string `json:"option_ids"`
	AnsweredAt int64    `json:"answered_at"`
}

// RecordAnswer autosaves one answer: the Redis hash gets the latest choice,
// a durable copy is queued for PostgreSQL, and the student's progress entry
// is re-graded. Re-answering a question overwrites the earlier choice.
func (s *ProgressService) RecordAnswer(ctx context.Context, session *model.ExamSession, studentID int, questionID uuid.UUID, optionIDs []string) error {
	key, err := s.submission.AnswerKey(ctx, session.ID)
	if err != nil {
		return err
	}
	if _, ok := key[questionID]; !ok {
		return fmt.Errorf("question %s does not belong to session", questionID)
	}

	sid := session.ID.String()
	encoded, err := json.Marshal(optionIDs)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, config.CacheKey.StudentAnswersKey(sid, studentID), questionID.String(), encoded).Err(); err != nil {
		return fmt.Errorf("autosave answer: %w", err)
	}

	job, err := json.Marshal(persistAnswerJob{
		SessionID:  sid,
		StudentID:  studentID,
		QuestionID: questionID.String(),
		OptionIDs:  optionIDs,
		AnsweredAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	if err := s.rdb.LPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Queue answer persist failed")
	}

	return s.regrade(ctx, session, studentID, key)
}

// regrade recomputes a student's running score from the full autosave hash.
func (s *ProgressService) regrade(ctx context.Context, session *model.ExamSession, studentID int, key map[uuid.UUID]AnswerKeyEntry) error {
	sid := session.ID.String()
	saved, err := s.rdb.HGetAll(ctx, config.CacheKey.StudentAnswersKey(sid, studentID)).Result()
	if err != nil {
		return fmt.Errorf("read autosaved answers: %w", err)
	}

	correct := 0
	for field, raw := range saved {
		qid, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		entry, ok := key[qid]
		if !ok {
			continue
		}
		var optionIDs []string
		if err := json.Unmarshal([]byte(raw), &optionIDs); err != nil {
			continue
		}
		if GradeAnswer(entry, optionIDs) {
			correct++
		}
	}

	score := 0.0
	if len(key) > 0 {
		score = float64(correct) / float64(len(key)) * 100
	}

	encoded, err := json.Marshal(progressEntry{
		QuestionsAnswered: len(saved),
		CurrentScore:      score,
	})
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, config.CacheKey.ProgressKey(sid), strconv.Itoa(studentID), encoded).Err()
}

// Poll assembles the monitoring snapshot for everyone who has started an
// attempt. Running attempts get time spent from the server clock; submitted
// ones keep their frozen figures. Zero answered questions still makes the
// list.
func (s *ProgressService) Poll(ctx context.Context, session *model.ExamSession) ([]model.LiveProgress, error) {
	participants, err := s.participantRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	byID := make(map[int]model.Participant, len(participants))
	for _, p := range participants {
		byID[p.UserID] = p
	}

	attempts, err := s.attemptRepo.ListAll(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.ProgressKey(session.ID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("read progress hash: %w", err)
	}

	now := time.Now()
	maxSeconds := int64(session.DurationMinutes) * 60
	snapshot := make([]model.LiveProgress, 0, len(attempts))
	for _, attempt := range attempts {
		if attempt.Status == model.AttemptStatusAbandoned {
			continue
		}

		var entry progressEntry
		if val, ok := raw[strconv.Itoa(attempt.StudentID)]; ok {
			if err := json.Unmarshal([]byte(val), &entry); err != nil {
				s.log.Warn().Err(err).Int("student_id", attempt.StudentID).Msg("Bad progress entry")
				entry = progressEntry{}
			}
		}

		lp := model.LiveProgress{
			StudentID:         attempt.StudentID,
			QuestionsAnswered: entry.QuestionsAnswered,
			TotalQuestions:    session.TotalQuestions,
			CurrentScore:      entry.CurrentScore,
			Submitted:         entry.Submitted || attempt.Status == model.AttemptStatusSubmitted,
		}
		if p, ok := byID[attempt.StudentID]; ok {
			lp.DisplayName = p.DisplayName
			lp.AvatarURL = p.AvatarURL
		}
		if lp.Submitted {
			lp.TimeSpentSeconds = entry.TimeSpentSeconds
		} else {
			elapsed := int64(now.Sub(attempt.StartedAt).Seconds())
			if elapsed > maxSeconds {
				elapsed = maxSeconds
			}
			if elapsed < 0 {
				elapsed = 0
			}
			lp.TimeSpentSeconds = elapsed
		}
		snapshot = append(snapshot, lp)
	}

	Rank(snapshot)
	return snapshot, nil
}

// Rank orders a progress snapshot in place: score descending, then answered
// count descending, then time spent ascending, then student ID for a total
// order. Zero-progress participants stay ranked, at the bottom.
func Rank(snapshot []model.LiveProgress) {
	sort.Slice(snapshot, func(i, j int) bool {
		a, b := snapshot[i], snapshot[j]
		if a.CurrentScore != b.CurrentScore {
			return a.CurrentScore > b.CurrentScore
		}
		if a.QuestionsAnswered != b.QuestionsAnswered {
			return a.QuestionsAnswered > b.QuestionsAnswered
		}
		if a.TimeSpentSeconds != b.TimeSpentSeconds {
			return a.TimeSpentSeconds < b.TimeSpentSeconds
		}
		return a.StudentID < b.StudentID
	})
}
