package service

import (
	"strings"
	"testing"

	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidStateTransitionErrorNamesBothStates(t *testing.T) {
	err := &InvalidStateTransitionError{
		Current:   model.SessionStatusFinished,
		Requested: model.SessionStatusInProgress,
	}

	assert.Contains(t, err.Error(), "FINISHED")
	assert.Contains(t, err.Error(), "IN_PROGRESS")
}

func TestGenerateAccessCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateAccessCode(accessCodeLength)
		require.NoError(t, err)
		require.Len(t, code, accessCodeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(accessCodeAlphabet, ch),
				"code %q contains %q outside the alphabet", code, ch)
		}
		seen[code] = true
	}
	// 32^6 codes; 50 draws colliding would mean a broken generator.
	assert.Greater(t, len(seen), 45)
}

func TestLateJoinersFindsRacedJoins(t *testing.T) {
	persisted := []model.Participant{
		{UserID: 1, DisplayName: "Ana"},
		{UserID: 2, DisplayName: "Ben"},
	}
	// Student 3 joined between the persisted snapshot and the roster teardown.
	current := []model.Participant{
		{UserID: 1, DisplayName: "Ana"},
		{UserID: 2, DisplayName: "Ben"},
		{UserID: 3, DisplayName: "Cleo"},
	}

	late := lateJoiners(persisted, current)
	require.Len(t, late, 1)
	assert.Equal(t, 3, late[0].UserID)
}

func TestLateJoinersEmptyWhenConverged(t *testing.T) {
	roster := []model.Participant{{UserID: 1}, {UserID: 2}}

	assert.Empty(t, lateJoiners(roster, roster))
	assert.Empty(t, lateJoiners(roster, nil), "leavers are not stragglers")
	assert.Empty(t, lateJoiners(nil, nil))
}

func TestGenerateAccessCodeAvoidsLookalikes(t *testing.T) {
	assert.NotContains(t, accessCodeAlphabet, "0")
	assert.NotContains(t, accessCodeAlphabet, "O")
	assert.NotContains(t, accessCodeAlphabet, "1")
	assert.NotContains(t, accessCodeAlphabet, "I")
}
