package service

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeadlineMemberRoundTrip(t *testing.T) {
	sessionID := uuid.New()
	member := config.CacheKey.DeadlineMember(sessionID.String(), 42)

	gotSession, gotStudent, err := ParseDeadlineMember(member)
	require.NoError(t, err)
	assert.Equal(t, sessionID, gotSession)
	assert.Equal(t, 42, gotStudent)
}

func TestParseDeadlineMemberMalformed(t *testing.T) {
	cases := []string{
		"",
		"no-colon",
		"not-a-uuid:7",
		fmt.Sprintf("%s:", uuid.New()),
		fmt.Sprintf("%s:abc", uuid.New()),
	}
	for _, member := range cases {
		_, _, err := ParseDeadlineMember(member)
		assert.Error(t, err, "member %q should be rejected", member)
	}
}
