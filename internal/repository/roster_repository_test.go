package repository

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterHash(t *testing.T, participants ...model.Participant) map[string]string {
	t.Helper()
	raw := make(map[string]string, len(participants))
	for _, p := range participants {
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		raw[string(rune('0'+p.UserID))] = string(encoded)
	}
	return raw
}

func TestParseRosterJoinOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	raw := rosterHash(t,
		model.Participant{UserID: 2, DisplayName: "Bea", JoinedAt: base.Add(2 * time.Second)},
		model.Participant{UserID: 1, DisplayName: "Ana", JoinedAt: base},
		model.Participant{UserID: 3, DisplayName: "Cy", JoinedAt: base.Add(time.Second)},
	)

	roster, err := ParseRoster(raw)
	require.NoError(t, err)
	require.Len(t, roster, 3)

	assert.Equal(t, "Ana", roster[0].DisplayName)
	assert.Equal(t, "Cy", roster[1].DisplayName)
	assert.Equal(t, "Bea", roster[2].DisplayName)
}

func TestParseRosterTieBreaksOnUserID(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	raw := rosterHash(t,
		model.Participant{UserID: 5, JoinedAt: at},
		model.Participant{UserID: 2, JoinedAt: at},
	)

	roster, err := ParseRoster(raw)
	require.NoError(t, err)

	// Same join instant: user ID decides, so every observer sees one order.
	assert.Equal(t, 2, roster[0].UserID)
	assert.Equal(t, 5, roster[1].UserID)
}

func TestParseRosterConvergesAfterLeave(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := model.Participant{UserID: 1, DisplayName: "A", JoinedAt: base}
	b := model.Participant{UserID: 2, DisplayName: "B", JoinedAt: base.Add(time.Second)}

	// join A, join B, leave A — the surviving snapshot holds only B.
	raw := rosterHash(t, a, b)
	delete(raw, "1")

	roster, err := ParseRoster(raw)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "B", roster[0].DisplayName)
}

func TestParseRosterEmpty(t *testing.T) {
	roster, err := ParseRoster(map[string]string{})
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestParseRosterMalformedEntry(t *testing.T) {
	_, err := ParseRoster(map[string]string{"1": "{not json"})
	assert.Error(t, err)
}
