package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// BulkInsert writes a session's questions in one transaction.
func (r *QuestionRepository) BulkInsert(ctx context.Context, sessionID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range questions {
		q := &questions[i]
		correctJSON, err := json.Marshal(q.CorrectOptionIDs)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO questions (session_id, question_text, kind, options, correct_option_ids, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			sessionID, q.QuestionText, q.Kind, q.Options, correctJSON, q.OrderNum,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range questions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListBySession retrieves a session's questions in paper order.
func (r *QuestionRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, question_text, kind, options, correct_option_ids, order_num
		 FROM questions
		 WHERE session_id = $1
		 ORDER BY order_num ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var correctJSON []byte
		if err := rows.Scan(&q.ID, &q.SessionID, &q.QuestionText, &q.Kind, &q.Options, &correctJSON, &q.OrderNum); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(correctJSON, &q.CorrectOptionIDs); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CountBySession returns the number of questions configured for a session.
func (r *QuestionRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE session_id = $1`, sessionID,
	).Scan(&count)
	return count, err
}
