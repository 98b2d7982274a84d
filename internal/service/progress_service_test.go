package service

import (
	"testing"

	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRankOrdering(t *testing.T) {
	snapshot := []model.LiveProgress{
		{StudentID: 1, CurrentScore: 40, QuestionsAnswered: 8, TimeSpentSeconds: 300},
		{StudentID: 2, CurrentScore: 80, QuestionsAnswered: 9, TimeSpentSeconds: 500},
		{StudentID: 3, CurrentScore: 80, QuestionsAnswered: 9, TimeSpentSeconds: 200},
		{StudentID: 4, CurrentScore: 80, QuestionsAnswered: 10, TimeSpentSeconds: 400},
	}

	Rank(snapshot)

	// Score first, then answered count, then less time spent wins the tie.
	ids := []int{snapshot[0].StudentID, snapshot[1].StudentID, snapshot[2].StudentID, snapshot[3].StudentID}
	assert.Equal(t, []int{4, 3, 2, 1}, ids)
}

func TestRankKeepsZeroProgressParticipants(t *testing.T) {
	snapshot := []model.LiveProgress{
		{StudentID: 1, CurrentScore: 0, QuestionsAnswered: 0, TimeSpentSeconds: 0},
		{StudentID: 2, CurrentScore: 60, QuestionsAnswered: 6, TimeSpentSeconds: 100},
	}

	Rank(snapshot)

	assert.Len(t, snapshot, 2)
	assert.Equal(t, 2, snapshot[0].StudentID)
	assert.Equal(t, 1, snapshot[1].StudentID)
}

func TestRankDeterministicOnFullTie(t *testing.T) {
	snapshot := []model.LiveProgress{
		{StudentID: 9, CurrentScore: 50, QuestionsAnswered: 5, TimeSpentSeconds: 100},
		{StudentID: 3, CurrentScore: 50, QuestionsAnswered: 5, TimeSpentSeconds: 100},
	}

	Rank(snapshot)

	assert.Equal(t, 3, snapshot[0].StudentID)
	assert.Equal(t, 9, snapshot[1].StudentID)
}
