package runner

import (
	"context"

	"codepulse/internal/judge/sandbox/result"
	"codepulse/internal/judge/sandbox/workspace"
)

// Runner executes a materialized unit against one stdin.
// Every failure is folded into the returned Outcome.
type Runner interface {
	Execute(ctx context.Context, unit workspace.Unit, stdin string) result.Outcome
}
