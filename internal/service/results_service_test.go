package service

import (
	"testing"

	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestSummarizeEmptySession(t *testing.T) {
	summary := Summarize(nil, 60)

	assert.Equal(t, 0, summary.TotalSubmissions)
	assert.Zero(t, summary.AverageScore)
	assert.Zero(t, summary.PassRate)
	assert.Zero(t, summary.HighestScore)
	assert.Zero(t, summary.LowestScore)
}

func TestSummarize(t *testing.T) {
	results := []model.ExamResult{
		{Score: 90},
		{Score: 70},
		{Score: 60},
		{Score: 20},
	}

	summary := Summarize(results, 60)

	assert.Equal(t, 4, summary.TotalSubmissions)
	assert.InDelta(t, 60.0, summary.AverageScore, 0.001)
	assert.InDelta(t, 75.0, summary.PassRate, 0.001, "60 is a passing score, boundary included")
	assert.InDelta(t, 90.0, summary.HighestScore, 0.001)
	assert.InDelta(t, 20.0, summary.LowestScore, 0.001)
}

func TestSummarizeNobodyPasses(t *testing.T) {
	results := []model.ExamResult{{Score: 10}, {Score: 30}}

	summary := Summarize(results, 80)

	assert.Zero(t, summary.PassRate)
	assert.InDelta(t, 30.0, summary.HighestScore, 0.001)
}
