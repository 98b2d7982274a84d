package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// ParticipantRepository persists the waiting-room roster snapshot taken at
// session start. Rows here are immutable history; the live roster lives in
// Redis while the room is open.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// SnapshotRoster writes the joined roster using a bulk UNNEST insert.
// ON CONFLICT DO NOTHING makes a begin retry after a partial failure safe.
func (r *ParticipantRepository) SnapshotRoster(ctx context.Context, sessionID uuid.UUID, roster []model.Participant) error {
	if len(roster) == 0 {
		return nil
	}

	n := len(roster)
	userIDs := make([]int, 0, n)
	names := make([]string, 0, n)
	avatars := make([]string, 0, n)
	joinedAts := make([]time.Time, 0, n)
	for _, p := range roster {
		userIDs = append(userIDs, p.UserID)
		names = append(names, p.DisplayName)
		avatars = append(avatars, p.AvatarURL)
		joinedAts = append(joinedAts, p.JoinedAt)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_participants (session_id, student_id, display_name, avatar_url, joined_at)
		 SELECT $1, u.student_id, u.display_name, u.avatar_url, u.joined_at
		 FROM UNNEST($2::int[], $3::text[], $4::text[], $5::timestamptz[])
		      AS u (student_id, display_name, avatar_url, joined_at)
		 ON CONFLICT (session_id, student_id) DO NOTHING`,
		sessionID, userIDs, names, avatars, joinedAts)
	return err
}

// ListBySession retrieves the participant snapshot in join order.
func (r *ParticipantRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, display_name, avatar_url, joined_at
		 FROM session_participants
		 WHERE session_id = $1
		 ORDER BY joined_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.UserID, &p.DisplayName, &p.AvatarURL, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// IsParticipant reports whether a student is in the session's snapshot.
func (r *ParticipantRepository) IsParticipant(ctx context.Context, sessionID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM session_participants WHERE session_id = $1 AND student_id = $2
		 )`, sessionID, studentID,
	).Scan(&exists)
	return exists, err
}
