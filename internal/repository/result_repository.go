package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// ResultRepository persists immutable exam results. The unique index on
// (session_id, student_id) is the at-most-once enforcement point for live
// sessions: the insert either wins or observes the earlier winner.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts a result. Returns (result, true) when this call created the
// row, or (existing, false) when a concurrent or earlier submission won the
// race — the caller treats the latter as success-with-existing-record.
func (r *ResultRepository) Create(ctx context.Context, res *model.ExamResult) (*model.ExamResult, bool, error) {
	answersJSON, err := json.Marshal(res.Answers)
	if err != nil {
		return nil, false, err
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO exam_results
			(session_id, student_id, score, correct_count, total_questions,
			 time_spent_seconds, attempt_number, is_auto_submit, answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_id, student_id) DO NOTHING
		 RETURNING id, submitted_at`,
		res.SessionID, res.StudentID, res.Score, res.CorrectCount, res.TotalQuestions,
		res.TimeSpentSeconds, res.AttemptNumber, res.IsAutoSubmit, answersJSON,
	).Scan(&res.ID, &res.SubmittedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		existing, fetchErr := r.GetBySessionAndStudent(ctx, res.SessionID, res.StudentID)
		if fetchErr != nil {
			return nil, false, fetchErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

// GetBySessionAndStudent retrieves one student's result for a session.
func (r *ResultRepository) GetBySessionAndStudent(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.ExamResult, error) {
	return scanResult(r.pool.QueryRow(ctx,
		`SELECT id, session_id, student_id, score, correct_count, total_questions,
		        time_spent_seconds, attempt_number, is_auto_submit, answers, submitted_at
		 FROM exam_results
		 WHERE session_id = $1 AND student_id = $2`, sessionID, studentID))
}

// ListBySession retrieves all results for a session, best score first.
func (r *ResultRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ExamResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, student_id, score, correct_count, total_questions,
		        time_spent_seconds, attempt_number, is_auto_submit, answers, submitted_at
		 FROM exam_results
		 WHERE session_id = $1
		 ORDER BY score DESC, time_spent_seconds ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ExamResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

// Exists reports whether a student already has a result for a session.
func (r *ResultRepository) Exists(ctx context.Context, sessionID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM exam_results WHERE session_id = $1 AND student_id = $2
		 )`, sessionID, studentID,
	).Scan(&exists)
	return exists, err
}

func scanResult(row interface{ Scan(...any) error }) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	var answersJSON []byte
	err := row.Scan(
		&res.ID, &res.SessionID, &res.StudentID, &res.Score, &res.CorrectCount,
		&res.TotalQuestions, &res.TimeSpentSeconds, &res.AttemptNumber,
		&res.IsAutoSubmit, &answersJSON, &res.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answersJSON, &res.Answers); err != nil {
		return nil, err
	}
	return res, nil
}
