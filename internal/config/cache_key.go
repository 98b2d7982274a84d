package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// RosterKey returns the hash holding the live waiting-room roster of a session
func (r *CacheKeyStruct) RosterKey(sessionID string) string {
	return fmt.Sprintf("session:%s:roster", sessionID)
}

// WaitingRoomChannel returns the Pub/Sub channel for a session's waiting room.
// Keyed by access code because that is all a waiting-room client knows.
func (r *CacheKeyStruct) WaitingRoomChannel(accessCode string) string {
	return fmt.Sprintf("waiting_room:%s", accessCode)
}

// SessionEventsChannel returns the Pub/Sub channel for in-exam lifecycle events
func (r *CacheKeyStruct) SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:events", sessionID)
}

// PaperKey returns the cache key for a session's student-facing paper
func (r *CacheKeyStruct) PaperKey(sessionID string) string {
	return fmt.Sprintf("session:%s:paper", sessionID)
}

// AnswerKeyKey returns the hash holding a session's authoritative answer sets
func (r *CacheKeyStruct) AnswerKeyKey(sessionID string) string {
	return fmt.Sprintf("session:%s:key", sessionID)
}

// DurationKey returns the cache key for a session's duration in minutes
func (r *CacheKeyStruct) DurationKey(sessionID string) string {
	return fmt.Sprintf("session:%s:duration", sessionID)
}

// AttemptStartKey returns the cache key for a student's attempt start instant
func (r *CacheKeyStruct) AttemptStartKey(sessionID string, studentID int) string {
	return fmt.Sprintf("student:%d:session:%s:attempt_start", studentID, sessionID)
}

// StudentAnswersKey returns the hash holding a student's autosaved answers
func (r *CacheKeyStruct) StudentAnswersKey(sessionID string, studentID int) string {
	return fmt.Sprintf("student:%d:session:%s:answers", studentID, sessionID)
}

// ProgressKey returns the hash holding per-student live progress for a session
func (r *CacheKeyStruct) ProgressKey(sessionID string) string {
	return fmt.Sprintf("session:%s:progress", sessionID)
}

// DeadlineSetKey returns the sorted set of attempt deadlines (score = unix expiry)
func (r *CacheKeyStruct) DeadlineSetKey() string {
	return "attempt_deadlines"
}

// DeadlineMember encodes one attempt inside the deadline sorted set
func (r *CacheKeyStruct) DeadlineMember(sessionID string, studentID int) string {
	return fmt.Sprintf("%s:%d", sessionID, studentID)
}

var CacheKey = NewCacheKeyStruct()
