package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{"draft opens waiting room", SessionStatusDraft, SessionStatusWaiting, true},
		{"waiting begins exam", SessionStatusWaiting, SessionStatusInProgress, true},
		{"waiting cancels back to draft", SessionStatusWaiting, SessionStatusDraft, true},
		{"in progress finishes", SessionStatusInProgress, SessionStatusFinished, true},

		{"draft cannot start directly", SessionStatusDraft, SessionStatusInProgress, false},
		{"draft cannot finish", SessionStatusDraft, SessionStatusFinished, false},
		{"waiting cannot finish", SessionStatusWaiting, SessionStatusFinished, false},
		{"in progress cannot return to waiting", SessionStatusInProgress, SessionStatusWaiting, false},
		{"in progress cannot return to draft", SessionStatusInProgress, SessionStatusDraft, false},
		{"finished is terminal", SessionStatusFinished, SessionStatusDraft, false},
		{"finished cannot restart", SessionStatusFinished, SessionStatusInProgress, false},
		{"self transition is illegal", SessionStatusWaiting, SessionStatusWaiting, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransition(tc.to))
		})
	}
}
