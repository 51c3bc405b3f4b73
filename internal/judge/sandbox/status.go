package sandbox

import (
	"context"

	"codepulse/internal/judge/sandbox/result"
)

// StatusUpdate carries intermediate batch progress.
type StatusUpdate struct {
	SubmissionID string
	Mode         string
	Status       result.JudgeStatus
	Language     string
	TotalTests   int
	DoneTests    int
}

// StatusReporter receives lifecycle updates. Errors are ignored by the worker.
type StatusReporter interface {
	ReportStatus(ctx context.Context, update StatusUpdate) error
}
