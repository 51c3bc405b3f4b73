package service

import (
	"context"

	"codepulse/internal/judge/model"
	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/result"
	"codepulse/pkg/utils/logger"

	"go.uber.org/zap"
)

// afterGraded archives the source and publishes the verdict. Failures are
// logged and never change the verdict.
func (s *Service) afterGraded(ctx context.Context, userID, problemID, submissionID int64, lang language.Language, code string, verdict result.BatchVerdict) {
	ctx = context.WithoutCancel(ctx)

	var sourceKey string
	if s.archive != nil {
		ctxStorage, cancel := withTimeout(ctx, s.storageTimeout)
		key, err := s.archive.Archive(ctxStorage, submissionID, lang.String(), code)
		cancel()
		if err != nil {
			logger.Warn(ctx, "archive source failed", zap.Int64("submission_id", submissionID), zap.Error(err))
		} else {
			sourceKey = key
		}
	}

	event := model.VerdictEvent{
		Type:            model.VerdictEventGraded,
		SubmissionID:    submissionID,
		ProblemID:       problemID,
		UserID:          userID,
		Language:        lang.String(),
		Status:          string(verdict.Status),
		ExecutionTimeMs: verdict.TotalTimeMs,
		SourceKey:       sourceKey,
	}
	if verdict.TestResults != nil {
		event.Passed = verdict.TestResults.Passed
		event.Total = verdict.TestResults.Total
	}
	s.publish(ctx, event)
}

func (s *Service) publish(ctx context.Context, event model.VerdictEvent) {
	if s.publisher == nil {
		return
	}
	ctxPublish, cancel := withTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.PublishVerdict(ctxPublish, event); err != nil {
		logger.Warn(ctx, "publish verdict failed",
			zap.Int64("submission_id", event.SubmissionID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}
