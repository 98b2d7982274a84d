package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampTimeSpentTrustsReasonableReport(t *testing.T) {
	s := &SubmissionService{}
	startedAt := time.Now().Add(-100 * time.Second)

	got := s.clampTimeSpent(50, startedAt, 10)
	assert.Equal(t, int64(50), got)
}

func TestClampTimeSpentCapsInflatedReport(t *testing.T) {
	s := &SubmissionService{}
	startedAt := time.Now().Add(-100 * time.Second)

	// The client claims more time than the server clock allows.
	got := s.clampTimeSpent(100000, startedAt, 10)
	assert.GreaterOrEqual(t, got, int64(100))
	assert.LessOrEqual(t, got, int64(102))
}

func TestClampTimeSpentReplacesMissingReport(t *testing.T) {
	s := &SubmissionService{}
	startedAt := time.Now().Add(-30 * time.Second)

	got := s.clampTimeSpent(0, startedAt, 10)
	assert.GreaterOrEqual(t, got, int64(30))
	assert.LessOrEqual(t, got, int64(32))
}

func TestClampTimeSpentNeverExceedsDuration(t *testing.T) {
	s := &SubmissionService{}
	// Started 20 minutes ago on a 10 minute exam (deadline sweep lag).
	startedAt := time.Now().Add(-20 * time.Minute)

	got := s.clampTimeSpent(0, startedAt, 10)
	assert.Equal(t, int64(600), got)
}
