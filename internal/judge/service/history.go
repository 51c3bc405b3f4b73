package service

import (
	"context"

	"codepulse/internal/judge/model"
	appErr "codepulse/pkg/errors"
)

const problemHistoryLimit = 20

// ListProblemSubmissions returns the caller's latest graded submissions for a problem.
func (s *Service) ListProblemSubmissions(ctx context.Context, userID, problemID int64) ([]model.ProblemSubmission, error) {
	if problemID <= 0 {
		return nil, appErr.ValidationError("problem_id", "invalid")
	}
	ctxDB, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()
	return s.submissions.ListByProblem(ctxDB, userID, problemID, problemHistoryLimit)
}

// GetSubmission returns one graded submission owned by the caller.
func (s *Service) GetSubmission(ctx context.Context, userID, submissionID int64) (model.SubmissionDetail, error) {
	if submissionID <= 0 {
		return model.SubmissionDetail{}, appErr.New(appErr.SubmissionNotFound)
	}
	ctxDB, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()
	return s.submissions.GetDetail(ctxDB, userID, submissionID)
}

// ListSubmissions returns the caller's single-run history, newest first.
func (s *Service) ListSubmissions(ctx context.Context, userID int64) ([]model.SingleSubmission, error) {
	ctxDB, cancel := withTimeout(ctx, s.dbTimeout)
	defer cancel()
	return s.submissions.ListSingle(ctxDB, userID)
}
