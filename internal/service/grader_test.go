package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeAnswerSingle(t *testing.T) {
	entry := AnswerKeyEntry{Kind: model.QuestionKindSingle, Correct: []string{"b"}}

	assert.True(t, GradeAnswer(entry, []string{"b"}))
	assert.False(t, GradeAnswer(entry, []string{"a"}))
	assert.False(t, GradeAnswer(entry, []string{"a", "b"}))
	assert.False(t, GradeAnswer(entry, nil))
}

func TestGradeAnswerTrueFalse(t *testing.T) {
	entry := AnswerKeyEntry{Kind: model.QuestionKindTrueFalse, Correct: []string{"true"}}

	assert.True(t, GradeAnswer(entry, []string{"true"}))
	assert.False(t, GradeAnswer(entry, []string{"false"}))
}

func TestGradeAnswerMultipleExactSet(t *testing.T) {
	entry := AnswerKeyEntry{Kind: model.QuestionKindMultiple, Correct: []string{"1", "3"}}

	assert.True(t, GradeAnswer(entry, []string{"1", "3"}))
	assert.True(t, GradeAnswer(entry, []string{"3", "1"}), "order must not matter")

	// Exact set equality: subsets, supersets and disjoint picks all fail.
	assert.False(t, GradeAnswer(entry, []string{"1"}))
	assert.False(t, GradeAnswer(entry, []string{"1", "2", "3"}))
	assert.False(t, GradeAnswer(entry, []string{"1", "2"}))
	assert.False(t, GradeAnswer(entry, nil))
}

func TestGradeSubmissionScore(t *testing.T) {
	q1, q2, q3, q4 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	key := map[uuid.UUID]AnswerKeyEntry{
		q1: {Kind: model.QuestionKindSingle, Correct: []string{"a"}},
		q2: {Kind: model.QuestionKindMultiple, Correct: []string{"1", "3"}},
		q3: {Kind: model.QuestionKindTrueFalse, Correct: []string{"false"}},
		q4: {Kind: model.QuestionKindSingle, Correct: []string{"c"}},
	}

	answers := []model.SubmittedAnswer{
		{QuestionID: q1, AnswerOptionIDs: []string{"a"}},           // correct
		{QuestionID: q2, AnswerOptionIDs: []string{"3", "1"}},      // correct
		{QuestionID: q3, AnswerOptionIDs: []string{"true"}},        // wrong
		// q4 unanswered: counts as wrong.
	}

	graded, correct, score := GradeSubmission(key, answers)

	require.Len(t, graded, 3)
	assert.Equal(t, 2, correct)
	assert.InDelta(t, 50.0, score, 0.001)
}

func TestGradeSubmissionIgnoresUnknownQuestions(t *testing.T) {
	q1 := uuid.New()
	key := map[uuid.UUID]AnswerKeyEntry{
		q1: {Kind: model.QuestionKindSingle, Correct: []string{"a"}},
	}

	answers := []model.SubmittedAnswer{
		{QuestionID: q1, AnswerOptionIDs: []string{"a"}},
		{QuestionID: uuid.New(), AnswerOptionIDs: []string{"x"}},
	}

	graded, correct, score := GradeSubmission(key, answers)

	assert.Len(t, graded, 1)
	assert.Equal(t, 1, correct)
	assert.InDelta(t, 100.0, score, 0.001)
}

func TestGradeSubmissionDeduplicatesRepeatedQuestions(t *testing.T) {
	q1, q2 := uuid.New(), uuid.New()
	key := map[uuid.UUID]AnswerKeyEntry{
		q1: {Kind: model.QuestionKindSingle, Correct: []string{"a"}},
		q2: {Kind: model.QuestionKindSingle, Correct: []string{"b"}},
	}

	// The same correct answer repeated must count once, never push
	// correctCount past the key size or the score past 100.
	answers := []model.SubmittedAnswer{
		{QuestionID: q1, AnswerOptionIDs: []string{"a"}},
		{QuestionID: q1, AnswerOptionIDs: []string{"a"}},
		{QuestionID: q1, AnswerOptionIDs: []string{"a"}},
	}

	graded, correct, score := GradeSubmission(key, answers)

	require.Len(t, graded, 1)
	assert.Equal(t, 1, correct)
	assert.InDelta(t, 50.0, score, 0.001)
}

func TestGradeSubmissionLastWriteWinsOnDuplicate(t *testing.T) {
	q1 := uuid.New()
	key := map[uuid.UUID]AnswerKeyEntry{
		q1: {Kind: model.QuestionKindSingle, Correct: []string{"a"}},
	}

	_, correct, score := GradeSubmission(key, []model.SubmittedAnswer{
		{QuestionID: q1, AnswerOptionIDs: []string{"x"}},
		{QuestionID: q1, AnswerOptionIDs: []string{"a"}},
	})
	assert.Equal(t, 1, correct, "later entry replaces the earlier one")
	assert.InDelta(t, 100.0, score, 0.001)

	_, correct, score = GradeSubmission(key, []model.SubmittedAnswer{
		{QuestionID: q1, AnswerOptionIDs: []string{"a"}},
		{QuestionID: q1, AnswerOptionIDs: []string{"x"}},
	})
	assert.Zero(t, correct, "a later wrong entry overrides the earlier correct one")
	assert.Zero(t, score)
}

func TestGradeSubmissionEmptyKey(t *testing.T) {
	graded, correct, score := GradeSubmission(nil, nil)

	assert.Empty(t, graded)
	assert.Zero(t, correct)
	assert.Zero(t, score)
}
