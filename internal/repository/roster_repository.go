package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// RosterRepository keeps the live waiting-room roster in a Redis hash
// (field = student ID, value = participant JSON). The hash only exists while
// the room is open; the begin transition snapshots it to PostgreSQL.
type RosterRepository struct {
	rdb *redis.Client
}

// NewRosterRepository creates a new RosterRepository.
func NewRosterRepository(rdb *redis.Client) *RosterRepository {
	return &RosterRepository{rdb: rdb}
}

// Add inserts a participant. Returns false if the student was already in the
// roster (joining twice is not an error, just a no-op).
func (r *RosterRepository) Add(ctx context.Context, sessionID string, p *model.Participant) (bool, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return false, err
	}
	return r.rdb.HSetNX(ctx, config.CacheKey.RosterKey(sessionID), strconv.Itoa(p.UserID), raw).Result()
}

// Remove deletes a participant. Idempotent: removing an absent student
// reports false with no error.
func (r *RosterRepository) Remove(ctx context.Context, sessionID string, userID int) (bool, error) {
	removed, err := r.rdb.HDel(ctx, config.CacheKey.RosterKey(sessionID), strconv.Itoa(userID)).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// Count returns the current roster size.
func (r *RosterRepository) Count(ctx context.Context, sessionID string) (int64, error) {
	return r.rdb.HLen(ctx, config.CacheKey.RosterKey(sessionID)).Result()
}

// Snapshot returns the full current roster ordered by join time.
func (r *RosterRepository) Snapshot(ctx context.Context, sessionID string) ([]model.Participant, error) {
	raw, err := r.rdb.HGetAll(ctx, config.CacheKey.RosterKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	return ParseRoster(raw)
}

// Clear drops the roster hash (cancel or begin).
func (r *RosterRepository) Clear(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, config.CacheKey.RosterKey(sessionID)).Err()
}

// ParseRoster decodes a roster hash into a join-ordered participant list.
// Sorting is by (joinedAt, userID) so every observer derives the same order
// from the same snapshot.
func ParseRoster(raw map[string]string) ([]model.Participant, error) {
	roster := make([]model.Participant, 0, len(raw))
	for _, v := range raw {
		var p model.Participant
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, err
		}
		roster = append(roster, p)
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].UserID < roster[j].UserID
		}
		return roster[i].JoinedAt.Before(roster[j].JoinedAt)
	})
	return roster, nil
}
