package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrSessionNotJoinable = errors.New("session is not accepting participants")
	ErrCapacityExceeded   = errors.New("session is full")
)

// RosterUpdate is the full-snapshot payload broadcast on every roster change.
// Always the complete list, never a delta: a client that misses a message
// converges on the next one.
type RosterUpdate struct {
	Event        string              `json:"event"`
	Participants []model.Participant `json:"participants"`
	Count        int                 `json:"count"`
}

// WaitingRoomService manages the pre-exam lobby. The roster lives in a Redis
// hash while the session is WAITING; joins and leaves fan out to watchers
// through Pub/Sub.
type WaitingRoomService struct {
	sessionRepo *repository.SessionRepository
	rosterRepo  *repository.RosterRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewWaitingRoomService creates a new WaitingRoomService.
func NewWaitingRoomService(
	sessionRepo *repository.SessionRepository,
	rosterRepo *repository.RosterRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *WaitingRoomService {
	return &WaitingRoomService{
		sessionRepo: sessionRepo,
		rosterRepo:  rosterRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "waiting_room_service").Logger(),
	}
}

// Join adds a student to the roster. Only WAITING sessions accept joins; a
// full session rejects the newcomer. Joining twice is a no-op that still
// rebroadcasts the roster so the rejoining client gets a snapshot.
func (s *WaitingRoomService) Join(ctx context.Context, session *model.ExamSession, studentID int, displayName, avatarURL string) ([]model.Participant, error) {
	if session.Status != model.SessionStatusWaiting {
		return nil, ErrSessionNotJoinable
	}

	sid := session.ID.String()
	p := &model.Participant{
		UserID:      studentID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		JoinedAt:    time.Now().UTC(),
	}

	added, err := s.rosterRepo.Add(ctx, sid, p)
	if err != nil {
		return nil, fmt.Errorf("roster add: %w", err)
	}

	if added && session.MaxParticipants > 0 {
		count, err := s.rosterRepo.Count(ctx, sid)
		if err != nil {
			return nil, fmt.Errorf("roster count: %w", err)
		}
		// HSetNX then HLen is not atomic; evict ourselves if the race
		// overfilled the room. Capacity is enforced, order of rejection isn't.
		if count > int64(session.MaxParticipants) {
			if _, err := s.rosterRepo.Remove(ctx, sid, studentID); err != nil {
				s.log.Error().Err(err).Int("student_id", studentID).Msg("Capacity rollback failed")
			}
			return nil, ErrCapacityExceeded
		}
	}

	roster, err := s.broadcast(ctx, session)
	if err != nil {
		return nil, err
	}
	if added {
		s.log.Debug().Str("session_id", sid).Int("student_id", studentID).Msg("Student joined waiting room")
	}
	return roster, nil
}

// Leave removes a student from the roster. Leaving a room one is not in is
// not an error.
func (s *WaitingRoomService) Leave(ctx context.Context, session *model.ExamSession, studentID int) error {
	if session.Status != model.SessionStatusWaiting {
		// The room is gone; nothing to leave.
		return nil
	}

	removed, err := s.rosterRepo.Remove(ctx, session.ID.String(), studentID)
	if err != nil {
		return fmt.Errorf("roster remove: %w", err)
	}
	if !removed {
		return nil
	}

	if _, err := s.broadcast(ctx, session); err != nil {
		return err
	}
	s.log.Debug().Str("session_id", session.ID.String()).Int("student_id", studentID).Msg("Student left waiting room")
	return nil
}

// Participants returns the current roster in join order.
func (s *WaitingRoomService) Participants(ctx context.Context, session *model.ExamSession) ([]model.Participant, error) {
	return s.rosterRepo.Snapshot(ctx, session.ID.String())
}

func (s *WaitingRoomService) broadcast(ctx context.Context, session *model.ExamSession) ([]model.Participant, error) {
	roster, err := s.rosterRepo.Snapshot(ctx, session.ID.String())
	if err != nil {
		return nil, fmt.Errorf("roster snapshot: %w", err)
	}

	payload, err := json.Marshal(RosterUpdate{
		Event:        "roster",
		Participants: roster,
		Count:        len(roster),
	})
	if err != nil {
		return nil, err
	}

	if err := s.rdb.Publish(ctx, config.CacheKey.WaitingRoomChannel(session.AccessCode), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Roster broadcast failed")
	}
	return roster, nil
}
