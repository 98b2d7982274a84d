package service

import (
	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// AnswerKeyEntry is one question's authoritative answer set, cached in the
// session's Redis answer-key hash for RAM grading.
type AnswerKeyEntry struct {
	Kind    model.QuestionKind `json:"kind"`
	Correct []string           `json:"correct"`
}

// GradeAnswer reports whether a submitted option-id set answers the question
// correctly.
//
//   - SINGLE and TRUE_FALSE: exactly one submitted id, matching the one
//     correct id.
//   - MULTIPLE: exact set equality — supersets and subsets both score wrong.
func GradeAnswer(entry AnswerKeyEntry, submitted []string) bool {
	switch entry.Kind {
	case model.QuestionKindSingle, model.QuestionKindTrueFalse:
		return len(submitted) == 1 && len(entry.Correct) == 1 && submitted[0] == entry.Correct[0]
	case model.QuestionKindMultiple:
		return sameSet(entry.Correct, submitted)
	default:
		return false
	}
}

// GradeSubmission grades a full answer sheet against the answer key.
// Unanswered questions count as wrong; answers to unknown question IDs are
// dropped. A sheet carrying the same question twice counts it once, last
// write wins. Score is the percentage of correct questions over the whole key.
func GradeSubmission(key map[uuid.UUID]AnswerKeyEntry, answers []model.SubmittedAnswer) ([]model.AnsweredQuestion, int, float64) {
	order := make([]uuid.UUID, 0, len(answers))
	latest := make(map[uuid.UUID][]string, len(answers))
	for _, a := range answers {
		if _, ok := key[a.QuestionID]; !ok {
			continue
		}
		if _, seen := latest[a.QuestionID]; !seen {
			order = append(order, a.QuestionID)
		}
		latest[a.QuestionID] = a.AnswerOptionIDs
	}

	graded := make([]model.AnsweredQuestion, 0, len(order))
	correct := 0

	for _, qid := range order {
		isCorrect := GradeAnswer(key[qid], latest[qid])
		if isCorrect {
			correct++
		}
		graded = append(graded, model.AnsweredQuestion{
			QuestionID:      qid,
			AnswerOptionIDs: latest[qid],
			IsCorrect:       isCorrect,
		})
	}

	total := len(key)
	var score float64
	if total > 0 {
		score = (float64(correct) / float64(total)) * 100
	}
	return graded, correct, score
}

// sameSet compares two id slices as sets, ignoring order and duplicates.
func sameSet(a, b []string) bool {
	setA := make(map[string]struct{}, len(a))
	for _, id := range a {
		setA[id] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, id := range b {
		setB[id] = struct{}{}
	}
	if len(setA) != len(setB) {
		return false
	}
	for id := range setA {
		if _, ok := setB[id]; !ok {
			return false
		}
	}
	return true
}
