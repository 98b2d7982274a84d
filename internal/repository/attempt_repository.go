package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// AttemptRepository records the server-side start instant of each student's
// attempt. started_at here, not any client clock, anchors the deadline.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Start records an attempt start, idempotently. If the student already
// started (refresh, second device), the original start instant is returned.
func (r *AttemptRepository) Start(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.AttemptStart, error) {
	a := &model.AttemptStart{
		SessionID: sessionID.String(),
		StudentID: studentID,
		Status:    model.AttemptStatusStarted,
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempt_starts (session_id, student_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, student_id) DO NOTHING
		 RETURNING started_at`,
		sessionID, studentID, model.AttemptStatusStarted,
	).Scan(&a.StartedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Concurrent or repeated start: fetch the original row.
		return r.Get(ctx, sessionID, studentID)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get retrieves one attempt start record.
func (r *AttemptRepository) Get(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.AttemptStart, error) {
	a := &model.AttemptStart{SessionID: sessionID.String(), StudentID: studentID}
	err := r.pool.QueryRow(ctx,
		`SELECT started_at, status FROM attempt_starts
		 WHERE session_id = $1 AND student_id = $2`,
		sessionID, studentID,
	).Scan(&a.StartedAt, &a.Status)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListStarted returns all attempts for a session still in STARTED state.
func (r *AttemptRepository) ListStarted(ctx context.Context, sessionID uuid.UUID) ([]model.AttemptStart, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, started_at FROM attempt_starts
		 WHERE session_id = $1 AND status = $2`,
		sessionID, model.AttemptStatusStarted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.AttemptStart
	for rows.Next() {
		a := model.AttemptStart{SessionID: sessionID.String(), Status: model.AttemptStatusStarted}
		if err := rows.Scan(&a.StudentID, &a.StartedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListAll returns every attempt recorded for a session, any status.
func (r *AttemptRepository) ListAll(ctx context.Context, sessionID uuid.UUID) ([]model.AttemptStart, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, started_at, status FROM attempt_starts
		 WHERE session_id = $1
		 ORDER BY started_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.AttemptStart
	for rows.Next() {
		a := model.AttemptStart{SessionID: sessionID.String()}
		if err := rows.Scan(&a.StudentID, &a.StartedAt, &a.Status); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// SetStatus marks an attempt SUBMITTED or ABANDONED. Only STARTED rows move;
// a settled attempt never changes outcome.
func (r *AttemptRepository) SetStatus(ctx context.Context, sessionID uuid.UUID, studentID int, status model.AttemptStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempt_starts SET status = $1
		 WHERE session_id = $2 AND student_id = $3 AND status = $4`,
		status, sessionID, studentID, model.AttemptStatusStarted)
	return err
}
