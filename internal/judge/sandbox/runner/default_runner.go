package runner

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"codepulse/internal/judge/sandbox/classifier"
	"codepulse/internal/judge/sandbox/engine"
	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/observer"
	"codepulse/internal/judge/sandbox/result"
	"codepulse/internal/judge/sandbox/spec"
	"codepulse/internal/judge/sandbox/workspace"
	"codepulse/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	containerWorkDir = "/app"

	msgTimeout       = "Execution Timeout"
	msgRuntimeError  = "Runtime Error: "
	msgOutputLimited = "output limit exceeded"
)

// DefaultRunner runs units through the sandbox engine inside a fixed envelope.
type DefaultRunner struct {
	eng      engine.Engine
	registry *language.Registry
	limits   spec.ResourceLimit
	metrics  observer.MetricsRecorder
}

// NewRunner creates a runner with the default envelope and no metrics.
func NewRunner(eng engine.Engine, registry *language.Registry) *DefaultRunner {
	return NewRunnerWithObserver(eng, registry, spec.DefaultLimits(), observer.NoopMetricsRecorder{})
}

// NewRunnerWithObserver creates a runner with an explicit envelope and metrics hooks.
func NewRunnerWithObserver(eng engine.Engine, registry *language.Registry, limits spec.ResourceLimit, metrics observer.MetricsRecorder) *DefaultRunner {
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	if registry == nil {
		registry = language.Default()
	}
	return &DefaultRunner{eng: eng, registry: registry, limits: limits.Normalize(), metrics: metrics}
}

func (r *DefaultRunner) Execute(ctx context.Context, unit workspace.Unit, stdin string) result.Outcome {
	start := time.Now()
	outcome := r.execute(ctx, unit, stdin)
	if outcome.DurationMs == 0 {
		outcome.DurationMs = time.Since(start).Milliseconds()
	}
	r.metrics.ObserveRun(ctx, unit.Language.String(), outcome.Terminal.String(), outcome.DurationMs, int64(len(outcome.Stdout)))
	return outcome
}

func (r *DefaultRunner) execute(ctx context.Context, unit workspace.Unit, stdin string) result.Outcome {
	langSpec, err := r.registry.Lookup(unit.Language)
	if err != nil {
		return runtimeError(err.Error())
	}
	cmd, err := langSpec.Command(unit.FileName)
	if err != nil {
		return runtimeError(err.Error())
	}

	runRes, err := r.eng.Run(ctx, spec.RunSpec{
		Image:   langSpec.Image,
		HostDir: unit.Dir,
		WorkDir: containerWorkDir,
		Cmd:     cmd,
		Stdin:   stdin,
		Limits:  r.limits,
		Label:   unit.FileName,
	})
	if err != nil {
		logger.Warn(ctx, "sandbox run failed", zap.String("language", langSpec.ID), zap.Error(err))
		outcome := runtimeError(err.Error())
		outcome.DurationMs = runRes.WallTimeMs
		outcome.Aborted = ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		return outcome
	}
	return classify(runRes)
}

func classify(runRes result.RunResult) result.Outcome {
	switch {
	case runRes.TimedOut:
		return result.Outcome{
			Terminal:   result.TerminalTimeout,
			RawError:   msgTimeout,
			DurationMs: runRes.WallTimeMs,
		}
	case runRes.OutputExceeded:
		return result.Outcome{
			Terminal:   result.TerminalError,
			RawError:   msgRuntimeError + msgOutputLimited,
			DurationMs: runRes.WallTimeMs,
		}
	case runRes.ExitCode != 0:
		detail := runRes.Stderr
		if strings.TrimSpace(detail) == "" {
			detail = "process exited with code " + strconv.Itoa(runRes.ExitCode)
		}
		outcome := runtimeError(detail)
		outcome.DurationMs = runRes.WallTimeMs
		return outcome
	default:
		return result.Outcome{
			Terminal:   result.TerminalCompleted,
			Stdout:     strings.TrimSpace(runRes.Stdout),
			DurationMs: runRes.WallTimeMs,
		}
	}
}

func runtimeError(detail string) result.Outcome {
	return result.Outcome{
		Terminal: result.TerminalError,
		RawError: msgRuntimeError + classifier.CleanMessage(detail),
	}
}
