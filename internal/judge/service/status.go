package service

import (
	"context"
	"time"

	"codepulse/internal/judge/model"
	"codepulse/internal/judge/sandbox"
	appErr "codepulse/pkg/errors"
	"codepulse/pkg/utils/logger"

	"go.uber.org/zap"
)

// ReportStatus stores intermediate batch progress in the cache.
func (s *Service) ReportStatus(ctx context.Context, update sandbox.StatusUpdate) error {
	if s.statusRepo == nil || update.SubmissionID == "" {
		return nil
	}
	status := model.JudgeStatusResponse{
		SubmissionID: update.SubmissionID,
		Mode:         update.Mode,
		Status:       update.Status,
		Language:     update.Language,
		Progress: model.Progress{
			TotalTests: update.TotalTests,
			DoneTests:  update.DoneTests,
		},
		UpdatedAt: time.Now().Unix(),
	}
	ctxStatus, cancel := withTimeout(ctx, s.statusTimeout)
	defer cancel()
	if err := s.statusRepo.Save(ctxStatus, status); err != nil {
		logger.Warn(ctx, "update intermediate status failed", zap.Error(err))
		return err
	}
	return nil
}

// GetStatus returns the last reported progress of a batch.
func (s *Service) GetStatus(ctx context.Context, submissionID string) (model.JudgeStatusResponse, error) {
	if s.statusRepo == nil {
		return model.JudgeStatusResponse{}, appErr.New(appErr.ServiceUnavailable).WithMessage("status tracking is disabled")
	}
	ctxStatus, cancel := withTimeout(ctx, s.statusTimeout)
	defer cancel()
	return s.statusRepo.Get(ctxStatus, submissionID)
}
