package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// SessionRepository handles exam session data access.
// All lifecycle transitions are conditional UPDATEs guarded by the current
// status, so two racing teacher calls cannot both win.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, teacher_id, title, access_code, status, duration_minutes,
	max_participants, passing_score, total_questions, started_at, finished_at,
	created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	var accessCode *string
	err := row.Scan(
		&s.ID, &s.TeacherID, &s.Title, &accessCode, &s.Status, &s.DurationMinutes,
		&s.MaxParticipants, &s.PassingScore, &s.TotalQuestions, &s.StartedAt, &s.FinishedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if accessCode != nil {
		s.AccessCode = *accessCode
	}
	return s, nil
}

// Create inserts a new session as DRAFT.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions
			(teacher_id, title, status, duration_minutes, max_participants, passing_score, total_questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		s.TeacherID, s.Title, model.SessionStatusDraft, s.DurationMinutes,
		s.MaxParticipants, s.PassingScore, s.TotalQuestions,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a session by its UUID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetByAccessCode retrieves a session by its human-enterable access code.
func (r *SessionRepository) GetByAccessCode(ctx context.Context, code string) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE access_code = $1`, code))
}

// OpenWaitingRoom moves DRAFT → WAITING and stamps the access code.
// Returns false if the session was not in DRAFT (somebody else transitioned it)
// or the access code collided with another session.
func (r *SessionRepository) OpenWaitingRoom(ctx context.Context, id uuid.UUID, accessCode string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, access_code = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4
		   AND NOT EXISTS (SELECT 1 FROM exam_sessions WHERE access_code = $2 AND id <> $3)`,
		model.SessionStatusWaiting, accessCode, id, model.SessionStatusDraft)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CancelWaitingRoom moves WAITING → DRAFT and releases the access code.
func (r *SessionRepository) CancelWaitingRoom(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, access_code = NULL, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		model.SessionStatusDraft, id, model.SessionStatusWaiting)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkStarted moves WAITING → IN_PROGRESS and sets started_at exactly once.
// The returned time is the authoritative session start instant.
func (r *SessionRepository) MarkStarted(ctx context.Context, id uuid.UUID) (*time.Time, error) {
	var startedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET status = $1, started_at = NOW(), updated_at = NOW()
		 WHERE id = $2 AND status = $3
		 RETURNING started_at`,
		model.SessionStatusInProgress, id, model.SessionStatusWaiting,
	).Scan(&startedAt)
	if err != nil {
		return nil, err
	}
	return &startedAt, nil
}

// MarkFinished moves IN_PROGRESS → FINISHED and sets finished_at exactly once.
func (r *SessionRepository) MarkFinished(ctx context.Context, id uuid.UUID) (*time.Time, error) {
	var finishedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET status = $1, finished_at = NOW(), updated_at = NOW()
		 WHERE id = $2 AND status = $3
		 RETURNING finished_at`,
		model.SessionStatusFinished, id, model.SessionStatusInProgress,
	).Scan(&finishedAt)
	if err != nil {
		return nil, err
	}
	return &finishedAt, nil
}

// ListByTeacher retrieves a teacher's sessions, newest first.
func (r *SessionRepository) ListByTeacher(ctx context.Context, teacherID, limit, offset int) ([]model.ExamSession, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE teacher_id = $1`, teacherID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE teacher_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, teacherID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}
