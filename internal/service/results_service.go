package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/rs/zerolog"
)

var (
	ErrSessionNotFinished = errors.New("session is not finished")
	ErrResultNotFound     = errors.New("no result for this student")
)

// ResultsService reads finished-session outcomes: per-student results and
// whole-session aggregates. Results are immutable once written, so there is
// nothing to invalidate here.
type ResultsService struct {
	resultRepo *repository.ResultRepository
	log        zerolog.Logger
}

// NewResultsService creates a new ResultsService.
func NewResultsService(resultRepo *repository.ResultRepository, log zerolog.Logger) *ResultsService {
	return &ResultsService{
		resultRepo: resultRepo,
		log:        log.With().Str("component", "results_service").Logger(),
	}
}

// SessionResults returns every result of a finished session, best score
// first, together with the aggregate summary.
func (s *ResultsService) SessionResults(ctx context.Context, session *model.ExamSession) ([]model.ExamResult, *model.SessionSummary, error) {
	if session.Status != model.SessionStatusFinished {
		return nil, nil, ErrSessionNotFinished
	}

	results, err := s.resultRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}

	summary := Summarize(results, session.PassingScore)
	return results, &summary, nil
}

// StudentResult returns one student's own result. Students may read it as
// soon as it exists, their session need not be finished yet.
func (s *ResultsService) StudentResult(ctx context.Context, session *model.ExamSession, studentID int) (*model.ExamResult, error) {
	result, err := s.resultRepo.GetBySessionAndStudent(ctx, session.ID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// Summarize aggregates a result set against a passing score. A session with
// no submissions yields all zeros rather than NaNs.
func Summarize(results []model.ExamResult, passingScore float64) model.SessionSummary {
	summary := model.SessionSummary{TotalSubmissions: len(results)}
	if len(results) == 0 {
		return summary
	}

	var sum float64
	passed := 0
	summary.HighestScore = results[0].Score
	summary.LowestScore = results[0].Score
	for _, r := range results {
		sum += r.Score
		if r.Score >= passingScore {
			passed++
		}
		if r.Score > summary.HighestScore {
			summary.HighestScore = r.Score
		}
		if r.Score < summary.LowestScore {
			summary.LowestScore = r.Score
		}
	}
	summary.AverageScore = sum / float64(len(results))
	summary.PassRate = float64(passed) / float64(len(results)) * 100
	return summary
}
