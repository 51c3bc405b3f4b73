package engine

import (
	"context"

	"codepulse/internal/judge/sandbox/result"
	"codepulse/internal/judge/sandbox/spec"
)

// Engine executes a RunSpec inside an isolated sandbox.
// Limit violations are reported in the RunResult; an error means the
// sandbox could not be launched or the run was cancelled.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}
