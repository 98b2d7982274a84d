package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExamTimerRemaining(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	timer := NewExamTimer(start, 10*time.Minute)

	assert.Equal(t, 10*time.Minute, timer.Remaining(start))
	assert.Equal(t, 4*time.Minute, timer.Remaining(start.Add(6*time.Minute)))
	assert.Equal(t, start.Add(10*time.Minute), timer.Deadline())
}

func TestExamTimerClampsAtZero(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	timer := NewExamTimer(start, 10*time.Minute)

	// A 10 minute exam observed at T+11 minutes reads zero, not negative.
	at := start.Add(11 * time.Minute)
	assert.Equal(t, time.Duration(0), timer.Remaining(at))
	assert.True(t, timer.Expired(at))
}

func TestExamTimerWarningFiresOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	timer := NewExamTimer(start, 30*time.Minute)

	// Plenty of time left: no warning.
	assert.False(t, timer.WarningDue(start.Add(10*time.Minute)))

	// Crossing the threshold fires exactly once.
	at := start.Add(26 * time.Minute)
	assert.True(t, timer.WarningDue(at))
	assert.False(t, timer.WarningDue(at))
	assert.False(t, timer.WarningDue(at.Add(time.Minute)))
}

func TestExamTimerNoWarningAfterExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	timer := NewExamTimer(start, 10*time.Minute)

	assert.False(t, timer.WarningDue(start.Add(15*time.Minute)))
}

func TestExamTimerAutoSubmitFiresOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	timer := NewExamTimer(start, 10*time.Minute)

	assert.False(t, timer.AutoSubmitDue(start.Add(9*time.Minute)))

	at := start.Add(10*time.Minute + time.Second)
	assert.True(t, timer.AutoSubmitDue(at))
	assert.False(t, timer.AutoSubmitDue(at))
	assert.False(t, timer.AutoSubmitDue(at.Add(time.Hour)))
}
